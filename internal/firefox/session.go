package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/sidestack/internal/types"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// sessionFiles are tried in order: the running session, then the last one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	for i := range mozLz4Magic {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// CompressMozLz4 is the inverse of DecompressMozLz4.
func CompressMozLz4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: compress failed: %w", err)
	}
	out := make([]byte, 0, 12+n)
	out = append(out, mozLz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, buf[:n]...), nil
}

type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries []rawEntry `json:"entries"`
	Index   int        `json:"index"`
	Image   string     `json:"image"`
	Pinned  bool       `json:"pinned"`
	Hidden  bool       `json:"hidden"`
	Group   string     `json:"groupId"`
	Muted   bool       `json:"muted"`
}

type rawGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

type rawWindow struct {
	Tabs     []rawTab   `json:"tabs"`
	Groups   []rawGroup `json:"groups"`
	Selected int        `json:"selected"` // 1-based
}

type rawSession struct {
	Windows        []rawWindow `json:"windows"`
	SelectedWindow int         `json:"selectedWindow"` // 1-based
}

// Session is a parsed session file. Windows are numbered from 1 in file
// order; tab and group IDs are assigned sequentially across the session.
type Session struct {
	Tabs    []types.Tab
	Groups  []types.Group
	Current int
}

// ParseSession parses the JSON inside a session file.
func ParseSession(data []byte) (*Session, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	s := &Session{Current: raw.SelectedWindow}
	if s.Current < 1 || s.Current > len(raw.Windows) {
		s.Current = 1
	}

	nextTab, nextGroup := 1, 1
	for w, window := range raw.Windows {
		wid := w + 1
		groupIDs := make(map[string]int)
		for _, rg := range window.Groups {
			groupIDs[rg.ID] = nextGroup
			s.Groups = append(s.Groups, types.Group{
				ID:        nextGroup,
				Title:     rg.Name,
				Color:     groupColor(rg.Color),
				Collapsed: rg.Collapsed,
				WindowID:  wid,
			})
			nextGroup++
		}

		index := 0
		for i, rt := range window.Tabs {
			// Hidden tabs belong to extensions such as tab managers, not the strip.
			if len(rt.Entries) == 0 || rt.Hidden {
				continue
			}
			// index is 1-based; current page is entries[index-1].
			e := rt.Index - 1
			if e < 0 || e >= len(rt.Entries) {
				e = len(rt.Entries) - 1
			}
			entry := rt.Entries[e]

			gid, ok := groupIDs[rt.Group]
			if rt.Group == "" || !ok {
				gid = types.GroupIDNone
			}
			s.Tabs = append(s.Tabs, types.Tab{
				ID:         nextTab,
				Index:      index,
				WindowID:   wid,
				Title:      entry.Title,
				URL:        entry.URL,
				FavIconURL: rt.Image,
				Pinned:     rt.Pinned,
				Active:     i+1 == window.Selected,
				GroupID:    gid,
			})
			nextTab++
			index++
		}
	}
	return s, nil
}

// groupColor maps Firefox's group colors onto the shared palette.
func groupColor(c string) types.Color {
	color := types.Color(c)
	if c == "gray" {
		color = types.ColorGrey
	}
	if !color.Valid() {
		return types.ColorGrey
	}
	return color
}

// SessionPath returns the newest session file in a profile directory.
func SessionPath(profileDir string) (string, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	for _, name := range sessionFiles {
		p := filepath.Join(backupDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no session file found in %s", backupDir)
}

// ReadSessionFile reads and parses the session file of a profile directory.
func ReadSessionFile(profileDir string) (*Session, error) {
	path, err := SessionPath(profileDir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}
	return ParseSession(decompressed)
}
