package encryption

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pgseal/pgseal/internal/config"
	"github.com/pgseal/pgseal/internal/fileutil"
	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/session"
	"github.com/pgseal/pgseal/internal/status"
)

// Mode selects what kind of message the batch produces.
type Mode uint8

const (
	// ModeStore packs without encrypting.
	ModeStore Mode = iota
	// ModeSymmetric encrypts under a passphrase-derived key.
	ModeSymmetric
	// ModePublicKey encrypts to the configured recipients.
	ModePublicKey
)

// resultBuffer bounds the results channel when the file list arrives on
// standard input and its length is unknown.
const resultBuffer = 16

// Processor drives a batch of files through the Composer, one message per
// file, with atomic output writes.
type Processor struct {
	// cfg contains runtime configuration options
	cfg *config.Config

	mode Mode

	composer *Composer

	// recipients is the resolved key set of public-key mode
	recipients []keyring.RecipientKey

	report status.Reporter

	// results channels processing outcomes to the printer goroutine
	results chan Result
}

// NewProcessor creates a Processor. Public-key mode resolves and validates
// the recipient set once, up front, so a bad selector fails before any
// file is touched.
func NewProcessor(
	cfg *config.Config,
	mode Mode,
	ring keyring.Keyring,
	passphrase session.PassphraseFunc,
	report status.Reporter,
) (*Processor, error) {
	composer, err := NewComposer(cfg, passphrase)
	if err != nil {
		return nil, err
	}

	processor := &Processor{
		cfg:      cfg,
		mode:     mode,
		composer: composer,
		report:   report,
		results:  make(chan Result, resultBuffer),
	}

	if mode == ModePublicKey {
		if ring == nil {
			return nil, fmt.Errorf("%w: no keyring", ErrNoRecipients)
		}

		recipients, err := ring.LookupEncryptionKeys(cfg.Recipients)
		if err != nil {
			return nil, err
		}

		for i := range recipients {
			if err := recipients[i].Validate(); err != nil {
				return nil, err
			}
		}

		processor.recipients = recipients
	}

	return processor, nil
}

// ProcessFiles runs the batch strictly in input order and reports each
// outcome. Returns the number of successfully processed files and the
// number of errors.
func (p *Processor) ProcessFiles() (processed, errored int, totalSize int64, err error) {
	files, err := p.expandFiles()
	if err != nil {
		return 0, 0, 0, err
	}

	group := errgroup.Group{}

	// one at a time: output files must appear in input order
	group.SetLimit(1)

	done := make(chan struct{})

	go func() {
		defer close(done)

		for result := range p.results {
			if result.Error != nil {
				errored++

				p.report.FileError(result.Input, result.Error)
			} else {
				processed++
				totalSize += result.OutputSize

				p.report.EndEncryption(result.Input, result.Output, result.OutputSize)
			}
		}
	}()

	for _, file := range files {
		group.Go(func() error {
			p.report.BeginEncryption(file)

			outPath := p.outputPath(file)

			size, err := p.processFile(file, outPath)
			if err != nil {
				p.results <- Result{Input: file, Error: err}

				return err
			}

			p.results <- Result{Input: file, Output: outPath, OutputSize: size}

			return nil
		})
	}

	err = group.Wait()

	close(p.results)

	<-done // Wait for printer to finish

	if err != nil {
		return processed, errored, totalSize, fmt.Errorf("processing files: %w", err)
	}

	return processed, errored, totalSize, nil
}

// expandFiles resolves the input list; a lone "-" reads one file name per
// line from standard input.
func (p *Processor) expandFiles() ([]string, error) {
	if len(p.cfg.Files) != 1 || p.cfg.Files[0] != "-" {
		return p.cfg.Files, nil
	}

	var files []string

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			files = append(files, name)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file list: %w", err)
	}

	return files, nil
}

// compose dispatches one source to the mode's operation.
func (p *Processor) compose(src *Source, out io.Writer) error {
	switch p.mode {
	case ModeStore:
		return p.composer.EncryptStore(src, out)
	case ModeSymmetric:
		return p.composer.EncryptSymmetric(src, out)
	case ModePublicKey:
		return p.composer.EncryptTo(src, out, p.recipients)
	}

	return fmt.Errorf("unknown mode %d", p.mode)
}

// processFile composes the message for a single file. Regular outputs go
// through a temporary file and an atomic rename; "-" streams to standard
// output.
func (p *Processor) processFile(filename, outPath string) (size int64, err error) {
	inFile, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOpenFailure, err)
	}
	defer inFile.Close()

	src := &Source{
		Reader: inFile,
		Name:   filepath.Base(filename),
	}

	if info, err := inFile.Stat(); err == nil && info.Mode().IsRegular() {
		if s := info.Size(); s > 0 {
			src.Size = uint64(s)
		}

		src.ModTime = info.ModTime()
	}

	if outPath == "-" {
		if err := p.compose(src, os.Stdout); err != nil {
			return 0, err
		}

		return 0, nil
	}

	tc, err := fileutil.NewTempContext(filename, outPath)
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if err := p.compose(src, tc.TmpFile); err != nil {
		return 0, err
	}

	const ownerReadWrite = 0o600

	if err := os.Chmod(tc.TmpName, ownerReadWrite); err != nil {
		return 0, fmt.Errorf("setting file permissions: %w", err)
	}

	if err := tc.TmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tc.TmpName, outPath); err != nil {
		return 0, fmt.Errorf("renaming output file: %w", err)
	}

	size, err = fileutil.FinalizeOutput(outPath, tc.SrcInfo.ModTime())
	if err != nil {
		return 0, fmt.Errorf("finalizing output: %w", err)
	}

	return size, nil
}

// outputPath derives the output name: the explicit path when one is
// given, otherwise input plus suffix.
func (p *Processor) outputPath(filename string) string {
	if p.cfg.Output != "" {
		return p.cfg.Output
	}

	return filepath.Join(filepath.Dir(filename),
		filepath.Base(filename)+p.cfg.Suffix)
}
