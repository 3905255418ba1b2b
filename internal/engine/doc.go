// Package engine provides the named entity recognition engines that
// entityscan feeds document chunks to.
//
// An Engine turns one bounded text window into a list of spans with character
// offsets relative to that window. Engines are constructed explicitly and
// passed to the collector, so their lifetime and configuration are visible to
// the caller and tests can substitute their own implementation.
//
// # Providers
//
// Three providers are available:
//
//   - http: a Termite-compatible recognition service (POST /api/recognize)
//   - regex: built-in patterns for personal data in German text (email, IBAN,
//     phone, postcode, ID card, credit card, date, street address)
//   - multi: runs several providers on the same text and concatenates the
//     results in provider order
//
// # Basic Usage
//
//	eng, err := engine.New(engine.Config{
//	    Kind:  engine.KindHTTP,
//	    URL:   "http://localhost:11433",
//	    Model: "de_core_news_sm",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	spans, err := eng.Process(ctx, "Hans Müller wohnt in Berlin.")
//
// # Input Limits
//
// Every engine reports MaxInputLength. Callers size their chunks so that no
// call exceeds it; engines reject longer input with ErrInputTooLong.
//
// # Caching
//
// With Config.CacheSize > 0 results are kept in an in-memory LRU cache keyed
// by an xxhash of engine name and text. Identical concurrent requests are
// collapsed into one engine call. The cache never outlives the process.
//
// # Retries
//
// The http provider retries failed requests with exponential backoff:
//
//	config := engine.RetryConfig{
//	    MaxRetries: 3,
//	    BaseDelay:  100 * time.Millisecond,
//	    MaxDelay:   5 * time.Second,
//	    Multiplier: 2.0,
//	}
//
// Client errors (4xx other than 429) and malformed responses are not retried.
//
// # Label Normalization
//
// Models disagree on label names (PERSON vs PER, GPE vs LOC). With
// Config.NormalizeLabels the common variants are mapped onto PER, LOC, ORG and
// MISC; unknown labels pass through unchanged.
package engine
