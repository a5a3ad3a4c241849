package mergestate

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/store"
)

// Record tags of the current format. Uppercase tags are mandatory: a reader
// that does not recognize one must refuse the file. Lowercase tags are
// advisory and skippable, which is how future writers can add data without
// breaking old readers.
const (
	recLocal byte = 'L'
	recOther byte = 'O'
	recFile  byte = 'F'
)

// read loads whichever on-disk encoding is authoritative. Both files are
// written together, but an older build may have rewritten only the legacy
// one; if the legacy file names a path the current file cannot explain, the
// legacy file is newer and wins. The legacy encoding cannot express the
// other side, so it is inferred from the second working parent.
func (s *Store) read(workingParents []string) error {
	legacyLocal, legacyPaths, haveLegacy, err := s.readLegacy()
	if err != nil {
		return err
	}
	current, haveCurrent, err := s.readCurrent()
	if err != nil {
		return err
	}

	useLegacy := haveLegacy && !haveCurrent
	if haveLegacy && haveCurrent {
		for _, p := range legacyPaths {
			if _, ok := current.entries[p]; !ok {
				useLegacy = true
				break
			}
		}
	}

	if useLegacy {
		s.local = legacyLocal
		if len(workingParents) > 1 {
			s.other = workingParents[1]
		}
		for _, p := range legacyPaths {
			s.entries[p] = &Entry{
				Status:       Unresolved,
				StashKey:     node.HashString(p),
				LocalPath:    p,
				AncestorPath: p,
				AncestorNode: node.Zero,
				OtherPath:    p,
				OtherNode:    node.Zero,
			}
		}
		// the current file is stale; rewrite both on the next commit
		s.dirty = true
		return nil
	}
	if haveCurrent {
		s.local = current.local
		s.other = current.other
		s.entries = current.entries
	}
	return nil
}

func (s *Store) readLegacy() (local string, paths []string, ok bool, err error) {
	f, err := os.Open(filepath.Join(s.dir, legacyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, false, nil
		}
		return "", nil, false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			local = line
			first = false
			continue
		}
		if line != "" {
			paths = append(paths, line)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if first {
		return "", nil, false, fmt.Errorf("%w: legacy state file is empty", ErrCorrupt)
	}
	return local, paths, true, nil
}

type decoded struct {
	local   string
	other   string
	entries map[string]*Entry
}

func (s *Store) readCurrent() (*decoded, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	d := &decoded{entries: make(map[string]*Entry)}
	for len(data) > 0 {
		if len(data) < 5 {
			return nil, false, fmt.Errorf("%w: truncated record header", ErrCorrupt)
		}
		tag := data[0]
		size := binary.BigEndian.Uint32(data[1:5])
		data = data[5:]
		if uint32(len(data)) < size {
			return nil, false, fmt.Errorf("%w: truncated record payload (tag %q)", ErrCorrupt, tag)
		}
		payload := data[:size]
		data = data[size:]

		switch tag {
		case recLocal:
			d.local = string(payload)
		case recOther:
			d.other = string(payload)
		case recFile:
			destPath, e, err := decodeFileRecord(payload)
			if err != nil {
				return nil, false, err
			}
			d.entries[destPath] = e
		default:
			if tag >= 'a' && tag <= 'z' {
				continue // advisory record from a newer writer
			}
			return nil, false, fmt.Errorf("%w: unsupported record type %q", ErrCorrupt, tag)
		}
	}
	return d, true, nil
}

func decodeFileRecord(payload []byte) (string, *Entry, error) {
	fields := strings.Split(string(payload), "\x00")
	if len(fields) != 9 {
		return "", nil, fmt.Errorf("%w: file record has %d fields, want 9", ErrCorrupt, len(fields))
	}
	if len(fields[1]) != 1 {
		return "", nil, fmt.Errorf("%w: malformed entry status %q", ErrCorrupt, fields[1])
	}
	st := Status(fields[1][0])
	if st != Unresolved && st != Resolved {
		return "", nil, fmt.Errorf("%w: unknown entry status %q", ErrCorrupt, fields[1])
	}
	return fields[0], &Entry{
		Status:       st,
		StashKey:     fields[2],
		LocalPath:    fields[3],
		AncestorPath: fields[4],
		AncestorNode: fields[5],
		OtherPath:    fields[6],
		OtherNode:    fields[7],
		Flags:        manifest.Flags(fields[8]),
	}, nil
}

// writeRecords serializes the store to both encodings atomically. The legacy
// file only lists conflicted paths; the current file carries full entries.
func (s *Store) writeRecords() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	var legacy strings.Builder
	legacy.WriteString(s.local)
	legacy.WriteByte('\n')
	for _, p := range s.Paths() {
		legacy.WriteString(p)
		legacy.WriteByte('\n')
	}

	var current bytes.Buffer
	writeRecord(&current, recLocal, []byte(s.local))
	writeRecord(&current, recOther, []byte(s.other))
	for _, p := range s.Paths() {
		e := s.entries[p]
		payload := strings.Join([]string{
			p, string(e.Status), e.StashKey,
			e.LocalPath, e.AncestorPath, e.AncestorNode,
			e.OtherPath, e.OtherNode, string(e.Flags),
		}, "\x00")
		writeRecord(&current, recFile, []byte(payload))
	}

	if err := store.AtomicWriteFile(filepath.Join(s.dir, legacyFileName), []byte(legacy.String()), 0644); err != nil {
		return fmt.Errorf("failed to write conflict state: %w", err)
	}
	if err := store.AtomicWriteFile(filepath.Join(s.dir, currentFileName), current.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write conflict state: %w", err)
	}
	return nil
}

func writeRecord(buf *bytes.Buffer, tag byte, payload []byte) {
	buf.WriteByte(tag)
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
	buf.Write(size[:])
	buf.Write(payload)
}
