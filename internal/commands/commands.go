package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgseal/pgseal/internal/config"
	"github.com/pgseal/pgseal/internal/encryption"
	"github.com/pgseal/pgseal/internal/filter"
	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/session"
	"github.com/pgseal/pgseal/internal/status"
)

// NewEncryptCommand creates the public-key encryption subcommand.
func NewEncryptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] files...",
		Aliases: []string{"enc"},
		Short:   "Encrypt files to recipient public keys",
		Args:    cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := unmarshalConfig(args)
			if err != nil {
				return err
			}

			return run(cfg, encryption.ModePublicKey)
		},
	}

	cmd.Flags().StringArrayP("recipient", "r", nil, "Recipient key id or user id substring (repeatable)")
	cmd.Flags().StringP("keyring", "k", "", "Path to the public-key file")
	cmd.Flags().Bool("throw-keyids", false, "Omit recipient key ids from the message")

	return cmd
}

// NewSymmetricCommand creates the passphrase encryption subcommand.
func NewSymmetricCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "symmetric [flags] files...",
		Aliases: []string{"sym"},
		Short:   "Encrypt files under a passphrase",
		Args:    cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := unmarshalConfig(args)
			if err != nil {
				return err
			}

			return run(cfg, encryption.ModeSymmetric)
		},
	}

	cmd.Flags().String("passphrase-file", "", "Read the passphrase from the first line of a file")
	cmd.Flags().String("digest", "", "String-to-key digest (md5, sha1, sha256, sha384, sha512)")

	return cmd
}

// NewStoreCommand creates the pack-without-encryption subcommand.
func NewStoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "store [flags] files...",
		Short: "Pack files as messages without encrypting",
		Args:  cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := unmarshalConfig(args)
			if err != nil {
				return err
			}

			return run(cfg, encryption.ModeStore)
		},
	}
}

// unmarshalConfig collects all bound flags and environment variables into
// the configuration and validates it.
func unmarshalConfig(args []string) (*config.Config, error) {
	var cfg config.Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Recipients = viper.GetStringSlice("recipient")
	cfg.Files = args

	if cfg.Suffix == "" {
		if cfg.Armor {
			cfg.Suffix = ".asc"
		} else {
			cfg.Suffix = ".pgp"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// run wires the collaborators for one batch and executes it.
func run(cfg *config.Config, mode encryption.Mode) error {
	configureLogging(cfg)

	start := time.Now()

	scanned, err := resolveInputs(cfg)
	if err != nil {
		return err
	}

	var ring keyring.Keyring

	if mode == encryption.ModePublicKey {
		fileRing, err := keyring.LoadFile(cfg.Keyring)
		if err != nil {
			return fmt.Errorf("loading keyring: %w", err)
		}

		ring = fileRing
	}

	var passphrase session.PassphraseFunc

	if mode == encryption.ModeSymmetric {
		passphrase = passphraseFunc(cfg)
	}

	processor, err := encryption.NewProcessor(cfg, mode, ring, passphrase, status.Logger{})
	if err != nil {
		return fmt.Errorf("creating processor: %w", err)
	}

	processed, errored, totalSize, err := processor.ProcessFiles()

	if cfg.Stats {
		fmt.Printf("%d scanned, %d processed, %d errored, %s written in %s\n",
			scanned, processed, errored,
			humanize.Bytes(uint64(totalSize)), //nolint:gosec // sizes are non-negative
			time.Since(start).Round(time.Millisecond))
	}

	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"processed": processed,
		"errored":   errored,
		"bytes":     totalSize,
	}).Debug("batch finished")

	return nil
}

// resolveInputs expands directory arguments through the include/exclude
// filter. The stdin file-list form passes through untouched for the
// processor to read.
func resolveInputs(cfg *config.Config) (scanned int, err error) {
	if len(cfg.Files) == 1 && cfg.Files[0] == "-" {
		return 0, nil
	}

	includes, excludes := cfg.Include, cfg.Exclude

	if cfg.IncludeFrom != "" {
		extra, err := filter.LoadPatterns(cfg.IncludeFrom)
		if err != nil {
			return 0, err
		}

		includes = append(includes, extra...)
	}

	if cfg.ExcludeFrom != "" {
		extra, err := filter.LoadPatterns(cfg.ExcludeFrom)
		if err != nil {
			return 0, err
		}

		excludes = append(excludes, extra...)
	}

	hasIncludes := len(includes) > 0 || cfg.IncludeFrom != ""

	files, scanned, err := filter.Resolve(cfg.Files, includes, excludes, cfg.Suffix, hasIncludes)
	if err != nil {
		return 0, err
	}

	cfg.Files = files

	return scanned, nil
}

func configureLogging(cfg *config.Config) {
	switch {
	case cfg.Quiet:
		log.SetLevel(log.ErrorLevel)
	case cfg.Verbose:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
