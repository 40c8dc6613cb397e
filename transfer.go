package sftpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

type sourceKind int

const (
	sourceBytes sourceKind = iota
	sourceFile
	sourceReader
)

// Source is the data written by Put and Append.
type Source struct {
	kind sourceKind
	data []byte
	path string
	r    io.Reader
}

// FromBytes uploads an in-memory buffer.
func FromBytes(data []byte) Source { return Source{kind: sourceBytes, data: data} }

// FromFile uploads the content of a local file. Append rejects it.
func FromFile(localPath string) Source { return Source{kind: sourceFile, path: localPath} }

// FromReader streams r to the server. The transfer returns only after any
// pending Read on r has returned, even when the session ends first.
func FromReader(r io.Reader) Source { return Source{kind: sourceReader, r: r} }

type destinationKind int

const (
	destinationMemory destinationKind = iota
	destinationFile
	destinationWriter
)

// Destination is where Get delivers the remote content.
type Destination struct {
	kind destinationKind
	path string
	w    io.Writer
}

// ToMemory makes Get return the whole content.
func ToMemory() Destination { return Destination{kind: destinationMemory} }

// ToFile makes Get write a new local file.
func ToFile(localPath string) Destination { return Destination{kind: destinationFile, path: localPath} }

// ToWriter makes Get stream into w. Get does not return while a Write to w
// is still in progress, so w is free to reuse once Get returns.
func ToWriter(w io.Writer) Destination { return Destination{kind: destinationWriter, w: w} }

// onlyReader hides io.WriterTo so io.Copy reads the remote file in order,
// one request at a time.
type onlyReader struct{ io.Reader }

// onlyWriter hides io.ReaderFrom for the same reason on the write side.
type onlyWriter struct{ io.Writer }

// Get downloads path into dst. For ToMemory the content is returned; for
// the other destinations the returned slice is nil.
func (c *Client) Get(ctx context.Context, path string, dst Destination, opts *TransferOptions) ([]byte, error) {
	const op = "sftp.get"
	o := opts.orDefault()

	switch {
	case dst.kind == destinationWriter && dst.w == nil:
		return nil, validationError(op, "destination writer is nil")
	case dst.kind == destinationFile && dst.path == "":
		return nil, validationError(op, "destination path is empty")
	}

	return call(ctx, c, op, func(s *session) ([]byte, error) {
		rdr, err := s.sftp.Open(path)
		if err != nil {
			return nil, pathError("open", path, err)
		}
		if o.Offset > 0 {
			if _, err := rdr.Seek(o.Offset, io.SeekStart); err != nil {
				rdr.Close()
				return nil, pathError("seek", path, err)
			}
		}

		switch dst.kind {
		case destinationFile:
			mode := o.Mode
			if mode == 0 {
				mode = 0o644
			}
			f, err := os.OpenFile(dst.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				rdr.Close()
				return nil, fmt.Errorf("failed to create local file: %w", err)
			}
			_, err = c.pipe(func() (int64, error) {
				return io.Copy(onlyWriter{f}, onlyReader{rdr})
			}, f, rdr, f)
			return nil, err

		case destinationWriter:
			_, err = c.pipe(func() (int64, error) {
				return io.Copy(dst.w, onlyReader{rdr})
			}, nil, rdr)
			return nil, err

		default:
			var buf bytes.Buffer
			if _, err := c.pipe(func() (int64, error) {
				return io.Copy(&buf, onlyReader{rdr})
			}, nil, rdr); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
	})
}

// Put writes src to path, replacing any existing file.
func (c *Client) Put(ctx context.Context, src Source, path string, opts *TransferOptions) (string, error) {
	const op = "sftp.put"
	if err := src.validate(op); err != nil {
		return "", err
	}

	return call(ctx, c, op, func(s *session) (string, error) {
		if err := c.upload(s, src, path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, opts.orDefault()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Uploaded data stream to %s", path), nil
	})
}

// Append adds src to the end of path, creating it if needed. Appending a
// local file by path is rejected before the server is contacted.
func (c *Client) Append(ctx context.Context, src Source, path string, opts *TransferOptions) (string, error) {
	const op = "sftp.append"
	if src.kind == sourceFile {
		return "", validationError(op, "cannot append one file to another")
	}
	if err := src.validate(op); err != nil {
		return "", err
	}

	return call(ctx, c, op, func(s *session) (string, error) {
		if err := c.upload(s, src, path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, opts.orDefault()); err != nil {
			return "", err
		}
		return fmt.Sprintf("Appended data stream to %s", path), nil
	})
}

func (src Source) validate(op string) error {
	switch {
	case src.kind == sourceReader && src.r == nil:
		return validationError(op, "source reader is nil")
	case src.kind == sourceFile && src.path == "":
		return validationError(op, "source path is empty")
	}
	return nil
}

func (c *Client) upload(s *session, src Source, path string, flags int, o TransferOptions) error {
	var rdr io.Reader
	var closers []io.Closer

	switch src.kind {
	case sourceFile:
		f, err := os.Open(src.path)
		if err != nil {
			return fmt.Errorf("failed to open local file: %w", err)
		}
		rdr = f
		closers = append(closers, f)
	case sourceReader:
		rdr = src.r
	default:
		rdr = bytes.NewReader(src.data)
	}

	w, err := s.sftp.OpenFile(path, flags)
	if err != nil {
		for _, cl := range closers {
			cl.Close()
		}
		return pathError("open", path, err)
	}
	closers = append(closers, w)

	if flags&os.O_APPEND != 0 {
		if _, err := w.Seek(0, io.SeekEnd); err != nil {
			for _, cl := range closers {
				cl.Close()
			}
			return pathError("seek", path, err)
		}
	}

	if _, err := c.pipe(func() (int64, error) {
		return io.Copy(onlyWriter{w}, onlyReader{rdr})
	}, w, closers...); err != nil {
		return err
	}

	if o.Mode != 0 {
		if err := s.sftp.Chmod(path, o.Mode); err != nil {
			return pathError("chmod", path, err)
		}
	}
	return nil
}

// concurrentReaderFrom is implemented by *sftp.File.
type concurrentReaderFrom interface {
	ReadFromWithConcurrency(r io.Reader, concurrency int) (int64, error)
}

// FastGet downloads remotePath to localPath with concurrent chunked reads.
func (c *Client) FastGet(ctx context.Context, remotePath, localPath string, opts *TransferOptions) (string, error) {
	o := opts.orDefault()
	return call(ctx, c, "sftp.fastGet", func(s *session) (string, error) {
		rdr, err := s.sftp.Open(remotePath)
		if err != nil {
			return "", pathError("open", remotePath, err)
		}
		mode := o.Mode
		if mode == 0 {
			mode = 0o644
		}
		f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			rdr.Close()
			return "", fmt.Errorf("failed to create local file: %w", err)
		}

		// io.Copy hands the copy to the remote file's WriteTo.
		if _, err := c.pipe(func() (int64, error) {
			return io.Copy(f, rdr)
		}, f, rdr, f); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s was successfully downloaded to %s!", remotePath, localPath), nil
	})
}

// FastPut uploads localPath to remotePath with concurrent chunked writes.
func (c *Client) FastPut(ctx context.Context, localPath, remotePath string, opts *TransferOptions) (string, error) {
	o := opts.orDefault()
	return call(ctx, c, "sftp.fastPut", func(s *session) (string, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return "", fmt.Errorf("failed to open local file: %w", err)
		}
		w, err := s.sftp.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			f.Close()
			return "", pathError("open", remotePath, err)
		}

		copyFn := func() (int64, error) {
			if crf, ok := w.(concurrentReaderFrom); ok && o.Concurrency > 0 {
				return crf.ReadFromWithConcurrency(f, o.Concurrency)
			}
			if rf, ok := w.(io.ReaderFrom); ok {
				return rf.ReadFrom(f)
			}
			return io.Copy(w, f)
		}
		if _, err := c.pipe(copyFn, w, f, w); err != nil {
			return "", err
		}

		if o.Mode != 0 {
			if err := s.sftp.Chmod(remotePath, o.Mode); err != nil {
				return "", pathError("chmod", remotePath, err)
			}
		}
		return fmt.Sprintf("%s was successfully uploaded to %s!", localPath, remotePath), nil
	})
}
