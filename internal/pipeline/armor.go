package pipeline

import (
	"io"

	"golang.org/x/crypto/openpgp/armor"
)

// armorStage radix-64 encodes the final binary message under a
// "PGP MESSAGE" header block. It is always the first stage pushed so every
// other stage writes through it.
type armorStage struct {
	writeOnly

	enc io.WriteCloser
}

// NewArmor returns a builder for the armor stage.
func NewArmor() Builder {
	return func(down io.Writer) (Transform, error) {
		enc, err := armor.Encode(down, "PGP MESSAGE", nil)
		if err != nil {
			return nil, err
		}

		return &armorStage{enc: enc}, nil
	}
}

func (a *armorStage) Flush(p []byte) error {
	_, err := a.enc.Write(p)

	return err
}

func (a *armorStage) Finalize() error {
	return a.enc.Close()
}

func (a *armorStage) Free() {
	a.enc = nil
}

func (a *armorStage) Name() string {
	return "armor"
}
