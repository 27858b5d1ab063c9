// Package deck parses the vocabulary text format produced by deck
// archives. Each line is one entry:
//
//	word|pronunciation|partOfSpeech,meaning|example1|translation1|example2|translation2|...
//
// Audio files follow a naming convention resolved against the directory
// the archive was extracted into: the headword recording is
// "<word>.mp3" with spaces replaced by underscores, and the Nth
// example's recording is "<word>_<N>.mp3".
package deck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Example is one usage example with its translation.
type Example struct {
	Text        string
	Translation string
}

// Entry is one parsed vocabulary entry.
type Entry struct {
	Word          string
	Pronunciation string
	PartOfSpeech  string
	Meaning       string
	Examples      []Example
}

// ParseLine parses a single deck line. The first three fields are
// mandatory; example/translation pairs follow. A trailing example with
// no translation keeps an empty Translation.
func ParseLine(line string) (Entry, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("deck line has %d fields, want at least 3: %q", len(fields), truncate(line, 60))
	}

	e := Entry{
		Word:          strings.TrimSpace(fields[0]),
		Pronunciation: strings.TrimSpace(fields[1]),
	}
	if e.Word == "" {
		return Entry{}, fmt.Errorf("deck line has empty word: %q", truncate(line, 60))
	}

	pos, meaning, found := strings.Cut(fields[2], ",")
	if found {
		e.PartOfSpeech = strings.TrimSpace(pos)
		e.Meaning = strings.TrimSpace(meaning)
	} else {
		e.Meaning = strings.TrimSpace(fields[2])
	}

	for i := 3; i < len(fields); i += 2 {
		ex := Example{Text: strings.TrimSpace(fields[i])}
		if i+1 < len(fields) {
			ex.Translation = strings.TrimSpace(fields[i+1])
		}
		if ex.Text != "" {
			e.Examples = append(e.Examples, ex)
		}
	}
	return e, nil
}

// Parse reads one entry per non-blank line. A malformed line fails with
// its line number; decks are small enough that partial results are not
// worth keeping.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ParseFile parses a deck file from disk.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// AudioFile returns the file name of the headword recording.
func (e Entry) AudioFile() string {
	return strings.ReplaceAll(e.Word, " ", "_") + ".mp3"
}

// ExampleAudioFile returns the file name of the recording for the Nth
// example, 1-based.
func (e Entry) ExampleAudioFile(n int) string {
	return fmt.Sprintf("%s_%d.mp3", strings.ReplaceAll(e.Word, " ", "_"), n)
}

// ResolveAudio returns the paths of the entry's audio files that exist
// under dir: the headword recording first, then example recordings in
// order.
func (e Entry) ResolveAudio(dir string) []string {
	var out []string
	if p := filepath.Join(dir, e.AudioFile()); fileExists(p) {
		out = append(out, p)
	}
	for i := 1; i <= len(e.Examples); i++ {
		if p := filepath.Join(dir, e.ExampleAudioFile(i)); fileExists(p) {
			out = append(out, p)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
