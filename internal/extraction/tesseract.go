package extraction

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var execCommandContext = exec.CommandContext

// tesseractLanguages maps recognition hints to tesseract traineddata names
var tesseractLanguages = map[string]string{
	"ko-KR": "kor",
	"ko":    "kor",
	"en-US": "eng",
	"en":    "eng",
}

// TesseractEngine runs the tesseract CLI and reads its TSV output.
type TesseractEngine struct {
	Command string
	Timeout time.Duration
}

func (e TesseractEngine) Recognize(ctx context.Context, img image.Image, languages []string) ([]Line, error) {
	cmdName := e.Command
	if cmdName == "" {
		cmdName = "tesseract"
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var input bytes.Buffer
	if err := png.Encode(&input, img); err != nil {
		return nil, fmt.Errorf("encoding image for tesseract: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, cmdName, "stdin", "stdout", "-l", tesseractLangArg(languages), "tsv")
	cmd.Stdin = &input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", cmdName, err, strings.TrimSpace(stderr.String()))
	}
	return parseTSV(&stdout)
}

func tesseractLangArg(languages []string) string {
	var codes []string
	seen := map[string]bool{}
	for _, l := range languages {
		code, ok := tesseractLanguages[l]
		if !ok {
			code = l
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return "kor+eng"
	}
	return strings.Join(codes, "+")
}

type lineKey struct {
	page, block, par, line int
}

// parseTSV groups word rows (level 5) into lines in reading order. Each line
// gets one candidate whose confidence is the mean word confidence.
func parseTSV(r io.Reader) ([]Line, error) {
	type acc struct {
		words []string
		conf  float64
	}
	var (
		order []lineKey
		lines = map[lineKey]*acc{}
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		nums := make([]int, 4)
		for i := range nums {
			n, err := strconv.Atoi(cols[i+1])
			if err != nil {
				return nil, fmt.Errorf("malformed tsv row %q: %w", sc.Text(), err)
			}
			nums[i] = n
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed tsv confidence %q: %w", cols[10], err)
		}

		key := lineKey{page: nums[0], block: nums[1], par: nums[2], line: nums[3]}
		a, ok := lines[key]
		if !ok {
			a = &acc{}
			lines[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, text)
		a.conf += conf
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make([]Line, 0, len(order))
	for _, key := range order {
		a := lines[key]
		out = append(out, Line{Candidates: []Candidate{{
			Text:       strings.Join(a.words, " "),
			Confidence: a.conf / float64(len(a.words)) / 100,
		}}})
	}
	return out, nil
}
