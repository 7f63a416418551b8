package walkperf

import (
	"bytes"
	"fmt"
	"html"
	"net"
	"os"
	"path/filepath"
	"strings"

	cors "github.com/AdhityaRamadhanus/fasthttpcors"
	"github.com/bingoohuang/gg/pkg/osx"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/valyala/fasthttp"
)

// Page is the rendered HTML of one benchmark, one chart per panel.
type Page struct {
	Name string
	File string
	data []byte
}

func (p *Page) Bytes() []byte { return p.data }

// WriteFile writes the page to path, creating its directory.
func (p *Page) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	if err := os.WriteFile(path, p.data, 0o644); err != nil {
		return fmt.Errorf("write chart %s: %w", path, err)
	}
	p.File = path
	return nil
}

// RenderPage draws the measurements of spec, a box plot or a scatter plot per panel.
func RenderPage(c *Config, spec *Spec, m *Measurements) (*Page, error) {
	page := components.NewPage()
	page.PageTitle = spec.Name
	page.SetLayout(components.PageFlexLayout)

	for panel := 0; panel < m.NumPanels(); panel++ {
		switch spec.Chart {
		case ScatterChart:
			page.AddCharts(newScatterPanel(c, spec, m, panel))
		default:
			page.AddCharts(newBoxPanel(c, spec, m, panel))
		}
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", spec.Name, err)
	}
	return &Page{Name: spec.Output, data: buf.Bytes()}, nil
}

func panelGlobalOptions(c *Config, spec *Spec, m *Measurements, panel int, xType string) []charts.GlobalOpts {
	yAxis := opts.YAxis{
		Name:      spec.YLabel,
		Type:      "value",
		AxisLabel: &opts.AxisLabel{Show: true, Formatter: "{value} ms"},
	}
	// keep panels of one benchmark on a comparable scale
	if spec.YFloor > 0 && m.MaxMillis(panel) < spec.YFloor {
		yAxis.Max = spec.YFloor
	}

	title := spec.Name
	if spec.NumPanels() > 1 {
		title = spec.PanelTitle(panel)
	}

	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: c.Size.WidthPx(), Height: c.Size.HeightPx()}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: spec.Name}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
		charts.WithLegendOpts(opts.Legend{Show: spec.Chart == ScatterChart, Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.XLabel, Type: xType}),
		charts.WithYAxisOpts(yAxis),
	}
}

func newBoxPanel(c *Config, spec *Spec, m *Measurements, panel int) components.Charter {
	labels := make([]string, m.NumBuckets())
	boxes := make([]opts.BoxPlotData, m.NumBuckets())
	var outliers []opts.ScatterData
	for bucket := range labels {
		labels[bucket] = spec.BucketLabel(bucket)
		if labels[bucket] == "" {
			labels[bucket] = spec.Name
		}

		b := NewBox(m.Cell(panel, bucket).Y)
		boxes[bucket] = opts.BoxPlotData{Name: labels[bucket], Value: b.Values()}
		for _, v := range b.Outliers {
			outliers = append(outliers, opts.ScatterData{Value: []interface{}{labels[bucket], v}, SymbolSize: 6})
		}
	}

	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(panelGlobalOptions(c, spec, m, panel, "category")...)
	bp.SetXAxis(labels).AddSeries("response time", boxes)

	if len(outliers) > 0 {
		sc := charts.NewScatter()
		sc.SetXAxis(labels).AddSeries("outliers", outliers)
		bp.Overlap(sc)
	}
	return bp
}

func newScatterPanel(c *Config, spec *Spec, m *Measurements, panel int) components.Charter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(panelGlobalOptions(c, spec, m, panel, "value")...)

	for bucket := 0; bucket < m.NumBuckets(); bucket++ {
		s := m.Cell(panel, bucket)
		data := make([]opts.ScatterData, s.Len())
		for i := range s.Y {
			data[i] = opts.ScatterData{Value: []interface{}{s.X[i], s.Y[i]}, SymbolSize: 6}
		}
		name := spec.BucketLabel(bucket)
		if name == "" {
			name = spec.Name
		}
		sc.AddSeries(name, data)
	}
	return sc
}

// chartsHandler serves an index of the pages at / and each page at /<name>.html.
func chartsHandler(pages []*Page) fasthttp.RequestHandler {
	byPath := make(map[string]*Page, len(pages))
	var index strings.Builder
	index.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>walkperf</title></head><body><ul>\n")
	for _, p := range pages {
		path := "/" + p.Name + ".html"
		byPath[path] = p
		name := html.EscapeString(p.Name)
		fmt.Fprintf(&index, "<li><a href=\"%s\">%s</a></li>\n", name+".html", name)
	}
	index.WriteString("</ul></body></html>\n")
	indexHTML := []byte(index.String())

	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		if path == "/" {
			ctx.SetContentType("text/html; charset=utf-8")
			ctx.SetBody(indexHTML)
			return
		}
		if p, ok := byPath[path]; ok {
			ctx.SetContentType("text/html; charset=utf-8")
			ctx.SetBody(p.data)
			return
		}
		ctx.Error("NotFound", fasthttp.StatusNotFound)
	}
}

// openBrowser is replaced in tests.
var openBrowser = osx.OpenBrowser

// openCharts opens the chart index in a browser, and logs the page links when none could be started.
func openCharts(addr string, pages []*Page) bool {
	if openBrowser(addr) {
		return true
	}

	for _, p := range pages {
		log.Warn("no browser to open the charts", "page", addr+"/"+p.Name+".html")
	}
	return false
}

// ServeCharts serves the rendered pages on port until the process is stopped.
func ServeCharts(port int, pages []*Page, open bool) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on %d: %w", port, err)
	}

	server := fasthttp.Server{
		Name:    "walkperf",
		Handler: cors.DefaultHandler().CorsMiddleware(chartsHandler(pages)),
	}

	addr := fmt.Sprintf("http://127.0.0.1:%d", port)
	log.Info("serving charts", "addr", addr, "pages", len(pages))
	if open {
		go openCharts(addr, pages)
	}

	return server.Serve(ln)
}
