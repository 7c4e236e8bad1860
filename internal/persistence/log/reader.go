package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tentscape.ai/internal/sim/world"
)

const maxLine = 16 * 1024 * 1024

// Segments lists the .jsonl.zst files in dir in chronological order.
func Segments(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ReadJSONL calls fn for every line of a compressed segment. Returning an
// error from fn stops the scan.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		if err := fn(b); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadFrames replays every frame segment under dataDir in order.
func ReadFrames(dataDir string, fn func(world.Frame) error) error {
	return readAll(filepath.Join(dataDir, FramesDir), func(b []byte) error {
		var f world.Frame
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		return fn(f)
	})
}

// ReadGenerations replays every generation entry under dataDir in order.
func ReadGenerations(dataDir string, fn func(world.GenerationEntry) error) error {
	return readAll(filepath.Join(dataDir, GenerationsDir), func(b []byte) error {
		var e world.GenerationEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		return fn(e)
	})
}

func readAll(dir string, fn func([]byte) error) error {
	segs, err := Segments(dir)
	if err != nil {
		return err
	}
	for _, p := range segs {
		if err := ReadJSONL(p, fn); err != nil {
			return err
		}
	}
	return nil
}
