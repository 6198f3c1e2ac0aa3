package filelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const textHeader = "[FileLog]"

// TextLog is a Log kept in a plain text file. Entries keep the order they
// were first added in.
type TextLog struct {
	file    string
	names   []string
	entries map[string]string
}

// NewTextLog loads the text log in file. A missing file gives an empty log.
func NewTextLog(file string) (*TextLog, error) {
	l := &TextLog{
		file:    file,
		entries: make(map[string]string),
	}

	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.FieldsFunc(strings.TrimRight(s.Text(), "\r"), func(r rune) bool {
			return r == '='
		})
		if len(fields) < 2 {
			continue
		}
		l.set(fields[0], fields[1])
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return l, nil
}

func (l *TextLog) set(name, value string) bool {
	_, ok := l.entries[name]
	if !ok {
		l.names = append(l.names, name)
	}
	l.entries[name] = value
	return !ok
}

func (l *TextLog) remove(name string) {
	if _, ok := l.entries[name]; !ok {
		return
	}
	delete(l.entries, name)
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			break
		}
	}
}

// HasFileBeenModified implements Log. An entry whose timestamp cannot be
// parsed counts as modified.
func (l *TextLog) HasFileBeenModified(file string) bool {
	v, ok := l.entries[file]
	if !ok {
		return true
	}

	logged, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}

	current, err := modTime(file)
	if err != nil {
		return true
	}

	return logged < current
}

// UpdateOrAddFile implements Log
func (l *TextLog) UpdateOrAddFile(file string) (bool, error) {
	t, err := modTime(file)
	if err != nil {
		return false, err
	}
	return l.set(file, strconv.FormatInt(t, 10)), nil
}

// DeleteFile implements Log
func (l *TextLog) DeleteFile(file string, ignoreExtension bool) error {
	if !ignoreExtension {
		l.remove(file)
		return nil
	}

	s := stem(file)
	for _, name := range l.names {
		if stem(name) == s {
			l.remove(name)
			break
		}
	}

	return nil
}

// Save implements Log
func (l *TextLog) Save() error {
	b := new(bytes.Buffer)
	fmt.Fprintln(b, textHeader)
	for _, name := range l.names {
		fmt.Fprintf(b, "%s=%s\n", name, l.entries[name])
	}
	return os.WriteFile(l.file, b.Bytes(), 0644)
}

// Close implements Log
func (l *TextLog) Close() error {
	return nil
}

// Len returns the number of files in the log
func (l *TextLog) Len() int {
	return len(l.names)
}
