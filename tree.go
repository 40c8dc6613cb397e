package sftpclient

import (
	"context"
	"fmt"
)

const (
	opMkdir = "sftp.mkdir"
	opRmdir = "sftp.rmdir"
)

// Mkdir creates the directory at path. With recursive set, missing parent
// directories are created first, and a path that already is a directory
// is left alone. A parent that exists but is not a directory fails with a
// KindValidation error.
func (c *Client) Mkdir(ctx context.Context, path string, recursive bool) (string, error) {
	p := NewRemotePath(path)
	if !recursive {
		return c.mkdir(ctx, p)
	}

	typ, ok, err := c.Exists(ctx, p.String())
	if err != nil {
		return "", err
	}
	if ok {
		if typ != TypeDirectory {
			return "", validationError(opMkdir, fmt.Sprintf("bad directory path: %s exists and is not a directory", p))
		}
		return fmt.Sprintf("%s directory already exists", p), nil
	}
	return c.mkdirAll(ctx, p)
}

// mkdirAll creates p, which is known to be missing, after its parents.
func (c *Client) mkdirAll(ctx context.Context, p RemotePath) (string, error) {
	if parent, ok := p.Parent(); ok {
		typ, exists, err := c.Exists(ctx, parent.String())
		if err != nil {
			return "", err
		}
		switch {
		case !exists:
			if _, err := c.mkdirAll(ctx, parent); err != nil {
				return "", err
			}
		case typ != TypeDirectory:
			return "", validationError(opMkdir, fmt.Sprintf("bad directory path: %s is not a directory", parent))
		}
	}
	return c.mkdir(ctx, p)
}

func (c *Client) mkdir(ctx context.Context, p RemotePath) (string, error) {
	return call(ctx, c, opMkdir, func(s *session) (string, error) {
		if err := s.sftp.Mkdir(p.String()); err != nil {
			return "", pathError("mkdir", p.String(), err)
		}
		return fmt.Sprintf("%s directory created", p), nil
	})
}

// Rmdir removes the directory at path. Without recursive the server
// rejects a non-empty directory. With recursive, files are deleted first,
// in listing order, then subdirectories are removed depth first, then the
// directory itself. The first failure aborts the removal.
func (c *Client) Rmdir(ctx context.Context, path string, recursive bool) (string, error) {
	p := NewRemotePath(path)
	if recursive {
		if err := c.removeChildren(ctx, p); err != nil {
			return "", err
		}
	}
	return c.rmdir(ctx, p)
}

func (c *Client) removeChildren(ctx context.Context, dir RemotePath) error {
	entries, err := c.List(ctx, dir.String(), MatchAll())
	if err != nil {
		return err
	}

	var dirs []Entry
	for _, e := range entries {
		if e.Type == TypeDirectory {
			dirs = append(dirs, e)
			continue
		}
		if _, err := c.Delete(ctx, dir.Join(e.Name).String()); err != nil {
			return err
		}
	}

	for _, d := range dirs {
		if _, err := c.Rmdir(ctx, dir.Join(d.Name).String(), true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) rmdir(ctx context.Context, p RemotePath) (string, error) {
	return call(ctx, c, opRmdir, func(s *session) (string, error) {
		if err := s.sftp.RemoveDirectory(p.String()); err != nil {
			return "", pathError("rmdir", p.String(), err)
		}
		return "Successfully removed directory", nil
	})
}
