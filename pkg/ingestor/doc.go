// Package ingestor turns a stream of program transactions into bounded,
// ordered, deduplicated per-kind event views.
//
// Every transaction, whether pushed, polled or backfilled, goes through
// HandleBatch: a transaction already in the cache is ignored; otherwise its
// events are decoded, inserted into their kind's list, announced to OnNewEvent
// handlers, and the transaction is recorded in the cache, releasing anyone
// blocked in AwaitTransaction. Batches are processed one at a time.
package ingestor
