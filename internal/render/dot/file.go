package dot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
)

// htmlShell embeds the rendered SVG in a standalone page.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>PostgreSQL Plan Alternatives</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
        .container { max-width: 100%%; background-color: white; padding: 20px; border-radius: 5px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
        h1 { color: #333; border-bottom: 2px solid #4CAF50; padding-bottom: 10px; }
        .svg-container { margin-top: 20px; text-align: center; }
        svg { max-width: 100%%; height: auto; }
    </style>
</head>
<body>
    <div class="container">
        <h1>PostgreSQL Plan Alternatives Visualization</h1>
        <p>This graph shows all query plans considered by PostgreSQL during query planning.</p>
        <p><strong>Green nodes</strong> indicate plans that were chosen. <strong>Blue nodes</strong> indicate alternative plans that were considered but not selected.</p>
        <div class="svg-container">
            %s
        </div>
    </div>
</body>
</html>
`

// WriteFile renders a graph and writes it to path. The extension picks the
// format: .dot writes the DOT source directly; .svg and .png pipe it through
// the Graphviz dot binary; .html embeds the SVG in a standalone page.
func WriteFile(ctx context.Context, path string, g *graph.Graph, opts Options) error {
	src := Render(g, opts)

	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot":
		data = src
	case ".svg", ".png":
		rendered, err := pipe(ctx, src, ext[1:])
		if err != nil {
			return err
		}
		data = rendered
	case ".html":
		svg, err := pipe(ctx, src, "svg")
		if err != nil {
			return err
		}
		data = []byte(fmt.Sprintf(htmlShell, svg))
	default:
		return fmt.Errorf("unsupported output format %q (want .dot, .svg, .png or .html)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Debug("graph written", "path", path, "bytes", len(data))
	return nil
}

// pipe feeds DOT source through the Graphviz dot binary.
func pipe(ctx context.Context, src []byte, format string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "dot", "-T"+format)
	cmd.Stdin = bytes.NewReader(src)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("graphviz dot -T%s: %w: %s", format, err, msg)
		}
		return nil, fmt.Errorf("graphviz dot -T%s: %w", format, err)
	}
	return out.Bytes(), nil
}
