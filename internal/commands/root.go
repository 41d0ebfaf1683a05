package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgseal/pgseal/internal/config"
)

// NewRootCommand creates the root command with the flags shared by every
// mode. Flags also bind to PGSEAL_* environment variables.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "pgseal [flags] command [flags] files...",
		Short: "OpenPGP message encryption utility",
		Long: `Seals files into OpenPGP messages: encrypted to public keys, encrypted
under a passphrase, or merely packed without encryption.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viper.SetEnvPrefix("pgseal")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.PersistentFlags().StringP("output", "o", "", `Output path; "-" writes to standard output`)
	root.PersistentFlags().String("suffix", "", `Suffix for derived output names (default ".pgp", ".asc" with armor)`)
	root.PersistentFlags().BoolP("armor", "a", false, "ASCII-armor the output")
	root.PersistentFlags().BoolP("text-mode", "t", false, "Treat input as text and canonicalize line endings")
	root.PersistentFlags().BoolP("compress", "z", false, "Compress before encrypting")
	root.PersistentFlags().String("compress-algo", "", "Compression algorithm (zip, zlib)")
	root.PersistentFlags().Int("compress-level", config.DefaultCompressLevel, "Compression level (-1 default, 0-9)")
	root.PersistentFlags().String("cipher", "", "Force a cipher (3des, cast5, blowfish, aes128, aes192, aes256)")
	root.PersistentFlags().Bool("legacy", false, "Produce messages readable by pre-OpenPGP implementations")
	root.PersistentFlags().Bool("no-literal", false, "Omit the literal-data wrapper")
	root.PersistentFlags().String("set-filename", "", "Override the stored file name")
	root.PersistentFlags().Bool("force-filename", false, "Store the file name override even when blank")
	root.PersistentFlags().Uint64("set-filesize", 0, "Declare a body length for unknown-size legacy input")
	root.PersistentFlags().Uint64("large-file-threshold", config.DefaultLargeFileThreshold,
		"Inputs at least this size stream instead of declaring a length")
	root.PersistentFlags().StringArray("include", nil, "Include pattern for directory arguments (repeatable)")
	root.PersistentFlags().StringArray("exclude", nil, "Exclude pattern for directory arguments (repeatable)")
	root.PersistentFlags().String("include-from", "", "Read include patterns from a JSONC file")
	root.PersistentFlags().String("exclude-from", "", "Read exclude patterns from a JSONC file")
	root.PersistentFlags().Bool("stats", false, "Print a summary after the batch")
	root.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")

	root.AddCommand(NewEncryptCommand(), NewSymmetricCommand(), NewStoreCommand())

	return root
}
