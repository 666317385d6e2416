// Package crawler defines the domain model of the review-acquisition engine:
// work items, extracted review records and their identity keys, crawl results,
// resolved language metrics, and the collaborator contracts (Fetcher, Parser,
// RatePolicy, Analyzer, stores) that the pagination engine and its
// coordinator are built against.
package crawler
