// Package queryd provides an embedded Go client for the queryd query
// classification service, backed by Redis or Valkey.
//
// The client wires the classifier, category store, and tiered caches
// in-process over a shared key-value store, without going through the HTTP
// API:
//
//	client, _ := queryd.New(ctx,
//	    queryd.WithRedis("localhost:6379", ""),
//	    queryd.WithEmbedder(embedder),
//	    queryd.WithCompleter(completer),
//	)
//	defer client.Close()
//
//	result := client.Classify(ctx, "how do I register a company")
//	if !result.ShouldSearchAll {
//	    // narrow retrieval to result.Categories
//	}
//
// Without an embedder and completer the classifier still works through its
// keyword stage and degrades to search-all beyond it.
package queryd
