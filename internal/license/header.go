package license

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Header is the copyright comment prepended to compiled artifacts.
type Header struct {
	// Product is the library name.
	Product string
	// Years is a single year or a "first-last" range.
	Years string
	// Owner is the copyright holder.
	Owner string
}

// NewHeader computes the year range once from baseline and now.
func NewHeader(product, owner string, baseline int, now time.Time) Header {
	return Header{
		Product: product,
		Years:   YearRange(baseline, now.Year()),
		Owner:   owner,
	}
}

// YearRange returns "baseline" when both years match and "baseline-current" otherwise.
func YearRange(baseline, current int) string {
	if baseline == current {
		return strconv.Itoa(baseline)
	}

	return strconv.Itoa(baseline) + "-" + strconv.Itoa(current)
}

// String renders the block comment, including the trailing newline.
func (h Header) String() string {
	var b strings.Builder

	b.WriteString("/*\n")
	b.WriteString(" * ")
	b.WriteString(h.Product)
	b.WriteString("\n *\n")
	b.WriteString(" * Copyright ")
	b.WriteString(h.Years)
	b.WriteString(" ")
	b.WriteString(h.Owner)
	b.WriteString("\n */\n")

	return b.String()
}

// Prepend rewrites the file at path with the header in front of its content.
// The file mode is preserved.
func (h Header) Prepend(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	header := h.String()
	annotated := make([]byte, 0, len(header)+len(content))
	annotated = append(annotated, header...)
	annotated = append(annotated, content...)

	if err = os.WriteFile(path, annotated, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
