// Package atrium provides an embeddable semantic search engine over a
// corpus of precomputed image embeddings.
//
// The engine ranks corpus records by cosine similarity between a text
// query embedding and the stored image embeddings. The corpus lives in a
// single JSON file produced by the offline indexing pipeline; the engine
// loads it once and serves searches from an in-memory matrix index.
//
//	client, _ := atrium.Open(
//	    atrium.WithCorpusPath("corpus.json"),
//	    atrium.WithDimensions(1024),
//	    atrium.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-large"),
//	)
//	defer client.Close()
//
//	results, info, _ := client.Search(ctx, "glass atrium flooded with daylight")
//	for _, r := range results {
//	    fmt.Printf("%.2f  %s\n", r.Confidence, r.ID)
//	}
//
// An empty result list with info.NoMatches set is a valid answer, not an
// error. Use errors.Is with the exported sentinel errors to classify
// failures.
package atrium
