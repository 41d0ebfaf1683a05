// Package config carries the runtime options of the pgseal commands.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Defaults for options that have a sensible non-zero value.
const (
	// DefaultLargeFileThreshold is the size at which inputs stop declaring
	// their length up front. Anything at or above it is streamed.
	DefaultLargeFileThreshold = 0xFFFFFFFF

	// DefaultCompressLevel lets the compressor pick.
	DefaultCompressLevel = -1
)

type Config struct {
	// Recipient selectors, matched against the keyring. Empty for the
	// passphrase and store modes.
	Recipients []string

	// Keyring is the path of the public-key file.
	Keyring string

	// Output is the explicit output path. Empty derives it from the
	// input name, "-" writes to standard output.
	Output string

	// PassphraseFile reads the passphrase from the first line of a file
	// instead of prompting.
	PassphraseFile string `mapstructure:"passphrase-file"`

	// Armor wraps the binary message in ASCII armor.
	Armor bool

	// TextMode canonicalizes line endings and marks the literal packet
	// as text.
	TextMode bool `mapstructure:"text-mode"`

	// Compress enables compression; level -1 lets the compressor pick.
	Compress      bool
	CompressAlgo  string `mapstructure:"compress-algo"  validate:"omitempty,oneof=zip zlib"`
	CompressLevel int    `mapstructure:"compress-level" validate:"min=-1,max=9"`

	// Cipher forces a symmetric algorithm instead of resolving one from
	// recipient preferences.
	Cipher string `validate:"omitempty,oneof=3des cast5 blowfish aes128 aes192 aes256"`

	// Digest selects the string-to-key hash of the passphrase modes.
	Digest string `validate:"omitempty,oneof=md5 sha1 sha256 sha384 sha512"`

	// Legacy emits messages readable by pre-OpenPGP implementations.
	Legacy bool

	// NoLiteral copies the raw bytes without a literal-data wrapper.
	NoLiteral bool `mapstructure:"no-literal"`

	// SetFilename overrides the stored file name; an empty override is
	// only honored together with ForceFilename.
	SetFilename   string `mapstructure:"set-filename"`
	ForceFilename bool   `mapstructure:"force-filename"`

	// SetFilesize declares a body length even when the input size is
	// unknown, for readers that need one. Only honored in legacy mode.
	SetFilesize uint64 `mapstructure:"set-filesize"`

	// ThrowKeyIDs zeroes the recipient key ids in the message.
	ThrowKeyIDs bool `mapstructure:"throw-keyids"`

	// LargeFileThreshold bounds up-front length declaration.
	LargeFileThreshold uint64 `mapstructure:"large-file-threshold" validate:"gt=0"`

	// Suffix is appended to input names when no output is given.
	Suffix string `validate:"required"`

	// Include and Exclude filter directory walks; explicit file
	// arguments bypass them. The *From variants read extra patterns
	// from a JSONC file.
	Include     []string
	Exclude     []string
	IncludeFrom string `mapstructure:"include-from"`
	ExcludeFrom string `mapstructure:"exclude-from"`

	// Stats prints a summary after the batch.
	Stats bool

	Quiet   bool
	Verbose bool

	// Files are the inputs; "-" alone reads file names from standard
	// input.
	Files []string `validate:"min=1"`
}

// Validate checks the configuration against the struct tags plus the
// cross-field rules the tags cannot express.
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	if len(c.Recipients) > 0 && c.Keyring == "" {
		return fmt.Errorf("validating configuration: recipients given but no keyring")
	}

	if c.SetFilesize > 0 && !c.Legacy {
		return fmt.Errorf("validating configuration: a declared file size needs legacy mode")
	}

	if len(c.Files) > 1 && c.Output != "" && c.Output != "-" {
		return fmt.Errorf("validating configuration: a single output path cannot serve %d inputs", len(c.Files))
	}

	return nil
}
