package pipeline

import "io"

// textNormalize rewrites lone LF line endings to CRLF so text messages use
// canonical network line endings. CRLF pairs pass through unchanged, as do
// bare carriage returns. State survives chunk boundaries, so a CR at the
// end of one flush suppresses insertion before an LF at the start of the
// next.
type textNormalize struct {
	writeOnly

	down   io.Writer
	out    []byte
	lastCR bool
}

// NewTextNormalize returns a builder for the line-ending transform.
func NewTextNormalize() Builder {
	return func(down io.Writer) (Transform, error) {
		return &textNormalize{down: down}, nil
	}
}

func (t *textNormalize) Flush(p []byte) error {
	if cap(t.out) < len(p)*2 {
		t.out = make([]byte, 0, len(p)*2)
	}

	out := t.out[:0]

	for _, b := range p {
		if b == '\n' && !t.lastCR {
			out = append(out, '\r')
		}

		out = append(out, b)
		t.lastCR = b == '\r'
	}

	t.out = out

	_, err := t.down.Write(out)

	return err
}

func (t *textNormalize) Finalize() error {
	return nil
}

func (t *textNormalize) Free() {
	t.out = nil
	t.down = nil
}

func (t *textNormalize) Name() string {
	return "text-normalize"
}
