// Package args decodes and validates the arguments of capability requests.
//
// Request arguments arrive as loosely typed JSON objects produced by a language
// model. Effects declare a struct with json and validate tags and decode into it:
//
//	type searchArgs struct {
//	    Query string    `json:"query" validate:"required"`
//	    From  time.Time `json:"from,omitempty"`
//	}
//
//	var in searchArgs
//	if err := args.Decode(req.Args, &in); err != nil {
//	    return domain.Failed(err.Error()), nil
//	}
//
// Decoding is lenient about scalar types ("5" decodes into an int) and parses
// RFC 3339 timestamps. Validation failures are reported as an *AggregateError
// listing every offending field, phrased so the model can correct itself.
//
// Schema derives the JSON Schema advertised to the model from the same struct.
package args
