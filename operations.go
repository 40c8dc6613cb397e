package sftpclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/sftp"
)

// EntryType is the single-character type indicator of a listing row, as in
// the first column of ls -l.
type EntryType string

const (
	TypeDirectory EntryType = "d"
	TypeFile      EntryType = "-"
	TypeSymlink   EntryType = "l"
	TypeBlock     EntryType = "b"
	TypeCharacter EntryType = "c"
	TypeFIFO      EntryType = "p"
	TypeSocket    EntryType = "s"
	TypeOther     EntryType = "?"
)

// Rights holds the permission triads of an entry with '-' removed, e.g.
// "rwx", "rw" or "".
type Rights struct {
	User  string
	Group string
	Other string
}

// Entry is one row of a directory listing. Times are epoch milliseconds.
type Entry struct {
	Type       EntryType
	Name       string
	Size       int64
	ModifyTime int64
	AccessTime int64
	Rights     Rights
	Owner      uint32
	Group      uint32
}

// StatRecord is a snapshot of a remote file's metadata. Mode holds the raw
// POSIX mode bits; times are epoch milliseconds.
type StatRecord struct {
	Mode              uint32
	UID               uint32
	GID               uint32
	Size              int64
	AccessTime        int64
	ModifyTime        int64
	IsDirectory       bool
	IsFile            bool
	IsBlockDevice     bool
	IsCharacterDevice bool
	IsSymbolicLink    bool
	IsFIFO            bool
	IsSocket          bool
}

// List returns the entries of the directory at path whose names match
// pattern, in the order the server sent them.
func (c *Client) List(ctx context.Context, path string, pattern Pattern) ([]Entry, error) {
	const op = "sftp.list"

	match, err := pattern.Compile()
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Msg: err.Error(), Err: err}
	}

	return call(ctx, c, op, func(s *session) ([]Entry, error) {
		infos, err := s.sftp.ReadDir(path)
		if err != nil {
			return nil, pathError("readdir", path, err)
		}

		entries := make([]Entry, 0, len(infos))
		for _, fi := range infos {
			if !match(fi.Name()) {
				continue
			}
			entries = append(entries, newEntry(fi))
		}
		return entries, nil
	})
}

// AuxList lists path filtered by a glob.
//
// Deprecated: use List with Glob.
func (c *Client) AuxList(ctx context.Context, path, glob string) ([]Entry, error) {
	c.logger.Warn("AuxList is deprecated, use List with Glob")
	if glob == "" {
		glob = "*"
	}
	return c.List(ctx, path, Glob(glob))
}

// Exists reports the type of the object at path. A missing object yields
// ok == false and a nil error; other server errors are returned. A path
// whose last element is "." always names a directory and is answered
// without a round trip.
func (c *Client) Exists(ctx context.Context, path string) (EntryType, bool, error) {
	type existence struct {
		typ EntryType
		ok  bool
	}

	p := NewRemotePath(path)
	dot := endsInDot(path) || p.IsCurrent()
	r, err := call(ctx, c, "sftp.exists", func(s *session) (existence, error) {
		if dot {
			return existence{typ: TypeDirectory, ok: true}, nil
		}
		fi, err := s.sftp.Lstat(p.String())
		if err != nil {
			if IsNotFound(err) {
				return existence{}, nil
			}
			return existence{}, pathError("lstat", p.String(), err)
		}
		return existence{typ: entryType(fi.Mode()), ok: true}, nil
	})
	return r.typ, r.ok, err
}

// Stat returns the attributes of path, following symbolic links.
func (c *Client) Stat(ctx context.Context, path string) (StatRecord, error) {
	return call(ctx, c, "sftp.stat", func(s *session) (StatRecord, error) {
		fi, err := s.sftp.Stat(path)
		if err != nil {
			return StatRecord{}, pathError("stat", path, err)
		}
		return newStatRecord(fi), nil
	})
}

// Delete removes the file at path.
func (c *Client) Delete(ctx context.Context, path string) (string, error) {
	return call(ctx, c, "sftp.delete", func(s *session) (string, error) {
		if err := s.sftp.Remove(path); err != nil {
			return "", pathError("remove", path, err)
		}
		return "Successfully deleted file", nil
	})
}

// Rename moves from to to.
func (c *Client) Rename(ctx context.Context, from, to string) (string, error) {
	return call(ctx, c, "sftp.rename", func(s *session) (string, error) {
		if err := s.sftp.Rename(from, to); err != nil {
			return "", pathError("rename", from, err)
		}
		return fmt.Sprintf("Successfully renamed %s to %s", from, to), nil
	})
}

// Chmod sets the permission bits of path.
func (c *Client) Chmod(ctx context.Context, path string, mode os.FileMode) (string, error) {
	return call(ctx, c, "sftp.chmod", func(s *session) (string, error) {
		if err := s.sftp.Chmod(path, mode); err != nil {
			return "", pathError("chmod", path, err)
		}
		return "Successfully changed file mode", nil
	})
}

func newEntry(fi os.FileInfo) Entry {
	e := Entry{
		Type:       entryType(fi.Mode()),
		Name:       fi.Name(),
		Size:       fi.Size(),
		ModifyTime: fi.ModTime().UnixMilli(),
		Rights:     newRights(fi.Mode()),
	}
	e.AccessTime = e.ModifyTime
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		e.ModifyTime = int64(st.Mtime) * 1000
		e.AccessTime = int64(st.Atime) * 1000
		e.Owner = st.UID
		e.Group = st.GID
	}
	return e
}

func newStatRecord(fi os.FileInfo) StatRecord {
	mode := fi.Mode()
	r := StatRecord{
		Mode:              posixMode(mode),
		Size:              fi.Size(),
		ModifyTime:        fi.ModTime().UnixMilli(),
		IsDirectory:       mode.IsDir(),
		IsFile:            mode.IsRegular(),
		IsBlockDevice:     mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0,
		IsCharacterDevice: mode&os.ModeCharDevice != 0,
		IsSymbolicLink:    mode&os.ModeSymlink != 0,
		IsFIFO:            mode&os.ModeNamedPipe != 0,
		IsSocket:          mode&os.ModeSocket != 0,
	}
	r.AccessTime = r.ModifyTime
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		r.Mode = st.Mode
		r.UID = st.UID
		r.GID = st.GID
		r.ModifyTime = int64(st.Mtime) * 1000
		r.AccessTime = int64(st.Atime) * 1000
	}
	return r
}

func entryType(mode os.FileMode) EntryType {
	switch {
	case mode.IsDir():
		return TypeDirectory
	case mode&os.ModeSymlink != 0:
		return TypeSymlink
	case mode&os.ModeNamedPipe != 0:
		return TypeFIFO
	case mode&os.ModeSocket != 0:
		return TypeSocket
	case mode&os.ModeCharDevice != 0:
		return TypeCharacter
	case mode&os.ModeDevice != 0:
		return TypeBlock
	case mode.IsRegular():
		return TypeFile
	default:
		return TypeOther
	}
}

func newRights(mode os.FileMode) Rights {
	// FileMode.String renders the triads in its last nine characters.
	s := mode.Perm().String()
	perm := s[len(s)-9:]
	strip := func(t string) string { return strings.ReplaceAll(t, "-", "") }
	return Rights{
		User:  strip(perm[0:3]),
		Group: strip(perm[3:6]),
		Other: strip(perm[6:9]),
	}
}

// POSIX file type bits.
const (
	sIFIFO  = 0o010000
	sIFCHR  = 0o020000
	sIFDIR  = 0o040000
	sIFBLK  = 0o060000
	sIFREG  = 0o100000
	sIFLNK  = 0o120000
	sIFSOCK = 0o140000
	sISUID  = 0o4000
	sISGID  = 0o2000
	sISVTX  = 0o1000
)

func posixMode(mode os.FileMode) uint32 {
	m := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		m |= sIFDIR
	case mode&os.ModeSymlink != 0:
		m |= sIFLNK
	case mode&os.ModeNamedPipe != 0:
		m |= sIFIFO
	case mode&os.ModeSocket != 0:
		m |= sIFSOCK
	case mode&os.ModeCharDevice != 0:
		m |= sIFCHR
	case mode&os.ModeDevice != 0:
		m |= sIFBLK
	default:
		m |= sIFREG
	}
	if mode&os.ModeSetuid != 0 {
		m |= sISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= sISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= sISVTX
	}
	return m
}
