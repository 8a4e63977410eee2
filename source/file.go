package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/thisisjab/rulezilla/entity"
)

type FileRecordSourceConfig struct {
	Name           string   `yaml:"-"`
	ProcessorNames []string `yaml:"-"`
	Path           string   `yaml:"path"`

	// FromStart makes the source emit the lines already in the file before
	// waiting for new ones.
	FromStart bool `yaml:"from_start"`

	// StopAtEOF makes the source return once the end of the file is reached
	// instead of watching it for appended lines.
	StopAtEOF bool `yaml:"stop_at_eof"`
}

// FileRecordSource works by watching a file for changes and emitting every
// newly written line as a record. Empty lines are skipped.
type FileRecordSource struct {
	cfg    FileRecordSourceConfig
	logger *slog.Logger
}

// NewFileRecordSource creates a new FileRecordSource instance.
func NewFileRecordSource(logger *slog.Logger, cfg FileRecordSourceConfig) (*FileRecordSource, error) {
	if cfg.Path == "" {
		return nil, errors.New("file path is required")
	}

	return &FileRecordSource{
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (f *FileRecordSource) Name() string {
	return f.cfg.Name
}

func (f *FileRecordSource) ProcessorNames() []string {
	return f.cfg.ProcessorNames
}

func (f *FileRecordSource) Provide(ctx context.Context, recordChan chan<- entity.Record) error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	if !f.cfg.FromStart {
		// Note that when file is read (when notified by fsnotify), the cursor will move to end of file
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(file)
	var pending []byte

	if f.cfg.FromStart {
		if pending, err = f.readLines(ctx, reader, pending, recordChan); err != nil {
			return err
		}
	}

	if f.cfg.StopAtEOF {
		if len(pending) > 0 {
			return f.emit(ctx, pending, recordChan)
		}
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.cfg.Path); err != nil {
		return fmt.Errorf("cannot add file to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				f.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}
			if !event.Has(fsnotify.Write) {
				// TODO: reopen the file when it is rotated. Editors that replace the file create a new
				// inode, which the watcher no longer tracks.
				f.logger.Debug("Received unhandled event from fsnotify.", "event", event.String())
				continue
			}

			if pending, err = f.readLines(ctx, reader, pending, recordChan); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// readLines emits every complete line available in reader. A trailing
// partial line is returned so it can be completed by a later write.
func (f *FileRecordSource) readLines(ctx context.Context, reader *bufio.Reader, pending []byte, recordChan chan<- entity.Record) ([]byte, error) {
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)

		if err == io.EOF {
			return pending, nil
		}
		if err != nil {
			return nil, err
		}

		if err := f.emit(ctx, pending, recordChan); err != nil {
			return nil, err
		}
		pending = nil
	}
}

func (f *FileRecordSource) emit(ctx context.Context, line []byte, recordChan chan<- entity.Record) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	r := entity.Record{
		ID:         uuid.New(),
		Source:     f.Name(),
		RawData:    bytes.Clone(line),
		ReceivedAt: time.Now(),
	}

	select {
	case recordChan <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
