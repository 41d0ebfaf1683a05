package encryption

// Result is the outcome of one input file.
type Result struct {
	// Input file path
	Input string

	// Output file path
	Output string

	// Output message size in bytes
	OutputSize int64

	// Any error that occurred while composing the message
	Error error
}
