// Package prompt implements the interactive questions of a clip session.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"streamsnip/internal/consts"
	"streamsnip/internal/entity"
	"streamsnip/pkg/ansi"
	"streamsnip/pkg/calc"
)

const quit = "q"

// Prompter asks questions on out and reads answers line by line from in.
// Every method returns io.EOF once in is exhausted.
type Prompter struct {
	in      *bufio.Scanner
	out     io.Writer
	painter ansi.Painter
}

// New creates a prompter.
func New(in io.Reader, out io.Writer, painter ansi.Painter) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out, painter: painter}
}

// Ask prints question and returns the trimmed answer.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)

	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}

		return "", io.EOF
	}

	return strings.TrimSpace(p.in.Text()), nil
}

// Confirm asks a y/N question. Anything but y or yes is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.Ask(question + " (y/N): ")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Println writes one line.
func (p *Prompter) Println(line string) {
	fmt.Fprintln(p.out, line)
}

// Painter returns the painter used for tags.
func (p *Prompter) Painter() ansi.Painter {
	return p.painter
}

// URL asks for a video URL. ok is false when the user quits.
func (p *Prompter) URL() (string, bool, error) {
	for {
		answer, err := p.Ask(p.painter.Paint(ansi.Blue, "Enter YouTube URL (or q to quit): "))
		if err != nil {
			return "", false, err
		}

		switch {
		case strings.EqualFold(answer, quit):
			return "", false, nil
		case answer != "":
			return answer, true, nil
		}
	}
}

// ListClips prints the numbered clip list with nominal start and end times.
func (p *Prompter) ListClips(videoID string, clips []entity.Clip) {
	p.Println(p.painter.Paint(ansi.Blue, fmt.Sprintf("Available clips for %s:", videoID)))

	for i, clip := range clips {
		p.Println(fmt.Sprintf("%d) %s [ID:%s] start=%.2f end=%.2f",
			i+1, clip.Message, clip.ID, clip.ClipTime, clip.ClipTime+clip.Duration(consts.DefaultDelay)))
	}
}

// Select asks until at least one valid clip number is given and returns them 1-based.
func (p *Prompter) Select(n int) ([]int, error) {
	for {
		answer, err := p.Ask("Select clip numbers (comma-separated, e.g. 1,3-5) or * for all: ")
		if err != nil {
			return nil, err
		}

		sel := ParseSelection(answer, n)

		for _, part := range sel.Invalid {
			p.Println(p.painter.Error("Invalid selection: %s", part))
		}

		for _, num := range sel.OutOfRange {
			p.Println(p.painter.Warn("Clip number %d is out of range.", num))
		}

		if len(sel.Numbers) == 0 {
			p.Println(p.painter.Error("No valid clips selected."))

			continue
		}

		strs := make([]string, len(sel.Numbers))
		for i, num := range sel.Numbers {
			strs[i] = strconv.Itoa(num)
		}

		p.Println(p.painter.Paint(ansi.Blue, "Selected clips: "+strings.Join(strs, ", ")))

		return sel.Numbers, nil
	}
}

// Padding asks whether to widen the clips and by how many seconds.
func (p *Prompter) Padding() (float64, error) {
	adjust, err := p.Confirm("Adjust delay?")
	if err != nil || !adjust {
		return 0, err
	}

	for {
		answer, err := p.Ask("Seconds to adjust: ")
		if err != nil {
			return 0, err
		}

		pad, err := ParsePadding(answer)
		if err != nil {
			p.Println(p.painter.Error("%v", err))

			continue
		}

		return pad, nil
	}
}

// Format lists formats and returns the chosen format id, or "" for the default.
func (p *Prompter) Format(formats []entity.Format) (string, error) {
	if len(formats) == 0 {
		return "", nil
	}

	p.Println(p.painter.Paint(ansi.Blue, "Available formats:"))

	for i, f := range formats {
		size := "-"
		if f.Filesize > 0 {
			size = calc.Bytes(f.Filesize)
		}

		p.Println(fmt.Sprintf("%d) %s %s %s %s %s", i+1, f.ID, f.Extension, f.Note, f.Resolution, size))
	}

	for {
		answer, err := p.Ask("Pick a format number or leave blank for default: ")
		if err != nil || answer == "" {
			return "", err
		}

		num, err := strconv.Atoi(answer)
		if err != nil || num < 1 || num > len(formats) {
			p.Println(p.painter.Error("Invalid format: %s", answer))

			continue
		}

		return formats[num-1].ID, nil
	}
}

// Container asks for the output extension; blank keeps def.
func (p *Prompter) Container(def string) (string, error) {
	answer, err := p.Ask("Enter format extension (mp4, mkv) or leave blank: ")
	if err != nil {
		return "", err
	}

	if answer == "" {
		return def, nil
	}

	return strings.TrimPrefix(strings.ToLower(answer), "."), nil
}
