package walkperf

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

const (
	maxBarLen = 40
	barStart  = "|"
	barBody   = "■"
	barEnd    = "|"
)

var (
	clearLine        = []byte("\r\033[K")
	IsStdoutTerminal = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)

type Printer struct {
	config      *Config
	spec        *Spec
	benchOption *BenchOption
	pbNumStr    string
	maxNum      int64
	curNum      int64
	verbose     int
}

func (p *Printer) updateProgressValue(rs *SnapshotReport) {
	if p.maxNum <= 0 {
		return
	}

	p.curNum = rs.Count
	if p.curNum > p.maxNum {
		p.curNum = p.maxNum
	}
	barLen := int((p.curNum*int64(maxBarLen-2) + p.maxNum/2) / p.maxNum)
	p.pbNumStr = barStart + strings.Repeat(barBody, barLen) + strings.Repeat(" ", maxBarLen-2-barLen) + barEnd
}

// PrintLoop redraws the live report until doneChan is closed and prints the final one.
func (p *Printer) PrintLoop(snapshot func() *SnapshotReport, doneChan <-chan struct{}) {
	if p.benchOption.NoReport {
		<-doneChan
		return
	}

	interval := 500 * time.Millisecond
	if !IsStdoutTerminal {
		interval = 1 * time.Minute
	}
	out := os.Stdout

	var echo func(isFinal bool)
	buf := &bytes.Buffer{}

	if IsStdoutTerminal {
		var backCursor string
		echo = func(isFinal bool) {
			r := snapshot()
			p.updateProgressValue(r)
			out.WriteString(backCursor)

			buf.Reset()
			p.formatTableReports(buf, r, isFinal)

			n := printLines(buf.Bytes(), out)
			backCursor = fmt.Sprintf("\033[%dA", n)
			out.Sync()
		}
	} else {
		echo = func(isFinal bool) {
			r := snapshot()
			p.updateProgressValue(r)

			buf.Reset()
			p.formatTableReports(buf, r, isFinal)

			printLines(buf.Bytes(), out)
			out.Sync()
		}
	}

	tick(interval, func() { echo(false) }, doneChan)
	echo(true)
}

// PrintBuckets prints the box plot statistics of every panel, one row per bucket.
func (p *Printer) PrintBuckets(m *Measurements) {
	if m == nil || m.Len() == 0 {
		return
	}

	buf := &bytes.Buffer{}
	p.formatBuckets(buf, m)
	os.Stdout.Write(buf.Bytes())
}

func (p *Printer) formatBuckets(w *bytes.Buffer, m *Measurements) {
	for panel := 0; panel < m.NumPanels(); panel++ {
		w.WriteString("\n箱线图 " + p.spec.PanelTitle(panel) + ":\n")
		writeBulk(w, p.buildBuckets(m, panel))
	}
}

func (p *Printer) buildBuckets(m *Measurements, panel int) [][]string {
	xLabel := p.spec.XLabel
	if xLabel == "" {
		xLabel = "Bucket"
	}

	ffm := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
	bulk := [][]string{{xLabel, "N", "Low", "Q1", "Median", "Q3", "High", "Outliers"}}
	for bucket := 0; bucket < m.NumBuckets(); bucket++ {
		b := NewBox(m.Cell(panel, bucket).Y)
		label := p.spec.BucketLabel(bucket)
		if label == "" {
			label = "-"
		}
		outliers := strconv.Itoa(len(b.Outliers))
		if len(b.Outliers) > 0 {
			outliers = colorize(outliers, FgMagentaColor)
		}
		bulk = append(bulk, []string{
			label, strconv.Itoa(b.N), ffm(b.Low), ffm(b.Q1), ffm(b.Median), ffm(b.Q3), ffm(b.High), outliers,
		})
	}

	alignBulk(bulk, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight)
	return bulk
}

func tick(interval time.Duration, echo func(), doneChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			echo()
		case <-doneChan:
			return
		}
	}
}

func printLines(result []byte, stdout *os.File) int {
	n := 0
	for ; ; n++ {
		i := bytes.IndexByte(result, '\n')
		if i < 0 {
			stdout.Write(clearLine)
			stdout.Write(result)
			break
		}
		stdout.Write(clearLine)
		stdout.Write(result[:i])
		stdout.Write([]byte("\n"))
		result = result[i+1:]
	}
	return n
}

// ANSI colors.
const (
	FgRedColor     = "1"
	FgMagentaColor = "5"
)

func colorize(s string, color string) string {
	if !IsStdoutTerminal {
		return s
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
}

func durationToString(d time.Duration) string {
	d = d.Truncate(time.Microsecond)
	return d.String()
}

func alignBulk(bulk [][]string, aligns ...int) {
	maxLen := map[int]int{}
	for _, b := range bulk {
		for i, bb := range b {
			lbb := displayWidth(bb)
			if maxLen[i] < lbb {
				maxLen[i] = lbb
			}
		}
	}
	for _, b := range bulk {
		for i, ali := range aligns {
			if len(b) >= i+1 {
				if i == len(aligns)-1 && ali == AlignLeft {
					continue
				}
				b[i] = padString(b[i], " ", maxLen[i], ali)
			}
		}
	}
}

func writeBulkWith(w *bytes.Buffer, bulk [][]string, lineStart, sep, lineEnd string) {
	for _, b := range bulk {
		w.WriteString(lineStart)
		w.WriteString(b[0])
		for _, bb := range b[1:] {
			w.WriteString(sep)
			w.WriteString(bb)
		}
		w.WriteString(lineEnd)
	}
}

func writeBulk(w *bytes.Buffer, bulk [][]string) {
	writeBulkWith(w, bulk, "  ", "  ", "\n")
}

func (p *Printer) formatTableReports(w *bytes.Buffer, r *SnapshotReport, isFinal bool) {
	w.WriteString("\n汇总 " + p.spec.Name + ":\n")
	writeBulk(w, p.buildSummary(r, isFinal))

	w.WriteString("\n")
	p.printError(w, r)
	writeBulkWith(w, p.buildStats(r), "", "  ", "\n")

	w.WriteString("\n百分位延迟:\n")
	writeBulk(w, p.buildPercentile(r))

	if p.verbose >= 1 {
		w.WriteString("\n直方图延迟:\n")
		writeBulk(w, p.buildHistogram(r))
	}
}

func (p *Printer) printError(w *bytes.Buffer, r *SnapshotReport) bool {
	if errorsBulks := p.buildErrors(r); errorsBulks != nil {
		w.WriteString("Error:\n")
		writeBulk(w, errorsBulks)
		w.WriteString("\n")
		return true
	}

	return false
}

func (p *Printer) buildHistogram(r *SnapshotReport) [][]string {
	hisBulk := make([][]string, 0, 8)
	maxCount := 0
	hisSum := 0
	for _, bin := range r.Histograms {
		if maxCount < bin.Count {
			maxCount = bin.Count
		}
		hisSum += bin.Count
	}
	for _, bin := range r.Histograms {
		row := []string{durationToString(bin.Mean), strconv.Itoa(bin.Count)}

		barLen := 0
		if maxCount > 0 {
			barLen = (bin.Count*maxBarLen + maxCount/2) / maxCount
		}
		percent := fmt.Sprintf("%.2f%%", math.Floor(float64(bin.Count)*1e4/float64(hisSum)+0.5)/100.0)
		row = append(row, percent, strings.Repeat(barBody, barLen))
		hisBulk = append(hisBulk, row)
	}

	alignBulk(hisBulk, AlignLeft, AlignRight, AlignRight, AlignLeft)
	return hisBulk
}

func (p *Printer) buildPercentile(r *SnapshotReport) [][]string {
	percBulk := make([][]string, 2)
	percAligns := make([]int, 0, len(r.Percentiles))
	for _, percentile := range r.Percentiles {
		perc := formatFloat64(percentile.Percentile * 100)
		percBulk[0] = append(percBulk[0], "P"+perc)
		percBulk[1] = append(percBulk[1], durationToString(percentile.Latency))
		percAligns = append(percAligns, AlignCenter)
	}
	percAligns[0] = AlignLeft
	alignBulk(percBulk, percAligns...)
	return percBulk
}

func (p *Printer) buildStats(r *SnapshotReport) [][]string {
	st := r.Stats
	dts := durationToString
	statsBulk := [][]string{
		{"统计", "Min", "Mean", "StdDev", "Max"},
		{"  Latency", dts(st.Min), dts(st.Mean), dts(st.StdDev), dts(st.Max)},
	}
	if rs := r.RpsStats; rs != nil {
		fft := func(v float64) string { return formatFloat64(math.Trunc(v*100) / 100.0) }
		statsBulk = append(statsBulk, []string{"  RPS", fft(rs.Min), fft(rs.Mean), fft(rs.StdDev), fft(rs.Max)})
	}
	alignBulk(statsBulk, AlignLeft, AlignCenter, AlignCenter, AlignCenter, AlignCenter)
	return statsBulk
}

func (p *Printer) buildErrors(r *SnapshotReport) [][]string {
	var errorsBulks [][]string
	for k, v := range r.Errors {
		vs := colorize(strconv.FormatInt(v, 10), FgRedColor)
		errorsBulks = append(errorsBulks, []string{vs, `"` + k + `"`})
	}
	if errorsBulks != nil {
		sort.Slice(errorsBulks, func(i, j int) bool { return errorsBulks[i][1] < errorsBulks[j][1] })
	}
	alignBulk(errorsBulks, AlignLeft, AlignLeft)
	return errorsBulks
}

func (p *Printer) buildSummary(r *SnapshotReport, isFinal bool) [][]string {
	elapsedLine := []string{"耗时", r.Elapsed.Truncate(time.Millisecond).String()}

	countLine := []string{"总次/RPS", fmt.Sprintf("%s %.3f", humanize.Comma(r.Count), r.RPS)}
	if p.maxNum > 0 && !isFinal {
		countLine = append(countLine, p.pbNumStr)
	}

	summaryBulk := [][]string{elapsedLine, countLine}

	codesBulks := make([][]string, 0, len(r.Codes))
	for k, v := range r.Codes {
		vs := fmt.Sprintf("%s %.3f", humanize.Comma(v), float64(v)/r.ElapseInSec)
		if k != "200" {
			vs = colorize(vs, FgMagentaColor)
		}
		codesBulks = append(codesBulks, []string{"  " + k, vs})
	}
	sort.Slice(codesBulks, func(i, j int) bool { return codesBulks[i][0] < codesBulks[j][0] })
	summaryBulk = append(summaryBulk, codesBulks...)

	if r.ReadBytes > 0 {
		summaryBulk = append(summaryBulk, []string{"平均读", fmt.Sprintf("%.3f MiB/s", r.ReadThroughput)})
		if p.verbose >= 1 {
			summaryBulk = append(summaryBulk, []string{"总和读", humanize.IBytes(uint64(r.ReadBytes))})
		}
	}

	if p.verbose >= 1 && r.Inputs > 0 {
		summaryBulk = append(summaryBulk, []string{"输入", humanize.Comma(r.Inputs)})
	}

	alignBulk(summaryBulk, AlignLeft, AlignRight)
	return summaryBulk
}

var ansi = regexp.MustCompile("\033\\[(?:[0-9]{1,3}(?:;[0-9]{1,3})*)?[m|K]")

func displayWidth(str string) int {
	return runewidth.StringWidth(ansi.ReplaceAllLiteralString(str, ""))
}

const (
	AlignLeft = iota
	AlignRight
	AlignCenter
)

func padString(s, pad string, width, align int) string {
	if gap := width - displayWidth(s); gap > 0 {
		switch align {
		case AlignLeft:
			return s + strings.Repeat(pad, gap)
		case AlignRight:
			return strings.Repeat(pad, gap) + s
		case AlignCenter:
			gapLeft := gap / 2
			gapRight := gap - gapLeft
			return strings.Repeat(pad, gapLeft) + s + strings.Repeat(pad, gapRight)
		}
	}
	return s
}
