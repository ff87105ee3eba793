package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/skillradar/internal/model"
)

// rowHeight is the number of lines one job takes in a list: title, meta
// line and a blank separator.
const rowHeight = 3

const (
	paneAll = iota
	paneMatched
)

// jobList is one scrollable pane of jobs. When filter is non-negative only
// jobs of that cluster are shown.
type jobList struct {
	title  string
	empty  string
	source model.Batch
	shown  model.Batch
	filter int
	cursor int
	vp     viewport.Model
}

func newJobList(title, empty string, jobs model.Batch) jobList {
	return jobList{title: title, empty: empty, source: jobs, shown: jobs, filter: model.Unassigned}
}

func (l *jobList) setFilter(c int) {
	l.filter = c
	l.cursor = 0
	l.vp.SetYOffset(0)
	if c < 0 {
		l.shown = l.source
		return
	}
	l.shown = model.Batch{}
	for _, j := range l.source {
		if j.Cluster == c {
			l.shown = append(l.shown, j)
		}
	}
}

func (l *jobList) move(delta int) {
	l.cursor = clamp(l.cursor+delta, 0, max(len(l.shown)-1, 0))

	top := l.cursor * rowHeight
	bottom := top + rowHeight - 1
	switch {
	case top < l.vp.YOffset:
		l.vp.SetYOffset(top)
	case bottom >= l.vp.YOffset+l.vp.Height:
		l.vp.SetYOffset(bottom - l.vp.Height + 1)
	}
}

func (l *jobList) selected() (model.JobRecord, bool) {
	if len(l.shown) == 0 {
		return model.JobRecord{}, false
	}
	return l.shown[l.cursor], true
}

func (l *jobList) refresh(focused bool) {
	l.vp.SetContent(renderJobs(l.shown, l.cursor, focused, l.empty))
}

func (l jobList) heading() string {
	if l.filter < 0 {
		return fmt.Sprintf(" %s (%d)", l.title, len(l.shown))
	}
	return fmt.Sprintf(" %s, cluster %d (%d of %d)", l.title, l.filter, len(l.shown), len(l.source))
}

type dashboardModel struct {
	lists     [2]jobList
	focus     int
	preferred []int
	clusters  []int // distinct clusters of the all-jobs pane, for cycling
	width     int
	height    int
	ready     bool

	detail   *model.JobRecord // non-nil while the detail view is open
	detailVP viewport.Model

	wantQuit bool
}

func newDashboardModel(all, matched model.Batch, preferred model.ClusterSet) dashboardModel {
	seen := model.NewClusterSet()
	for _, j := range all {
		seen[j.Cluster] = struct{}{}
	}
	return dashboardModel{
		lists: [2]jobList{
			paneAll:     newJobList("All Clustered Jobs", "(no jobs)", all),
			paneMatched: newJobList("New Jobs Matching Your Preferences", "No new jobs found in your preferred categories.", matched),
		},
		preferred: preferred.Sorted(),
		clusters:  seen.Sorted(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return nil
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.detail != nil {
			return m.updateDetail(msg)
		}
		return m.updateLists(msg)
	}
	return m, nil
}

func (m dashboardModel) updateLists(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := &m.lists[m.focus]

	switch {
	case key.Matches(msg, keys.Back):
		m.wantQuit = false
		return m, tea.Quit
	case key.Matches(msg, keys.Switch):
		m.focus = 1 - m.focus
	case key.Matches(msg, keys.Up):
		active.move(-1)
	case key.Matches(msg, keys.Down):
		active.move(1)
	case key.Matches(msg, keys.Cluster):
		m.lists[paneAll].setFilter(nextCluster(m.clusters, m.lists[paneAll].filter))
	case key.Matches(msg, keys.Open):
		if j, ok := active.selected(); ok {
			m.detail = &j
			m.detailVP = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
			m.detailVP.SetContent(renderDetail(j, max(m.width-8, 20)))
		}
		return m, nil
	default:
		// pgup/pgdn/home/end scroll the focused pane.
		var cmd tea.Cmd
		active.vp, cmd = active.vp.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m dashboardModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Back) {
		m.detail = nil
		return m, nil
	}
	var cmd tea.Cmd
	m.detailVP, cmd = m.detailVP.Update(msg)
	return m, cmd
}

// nextCluster steps the all-jobs filter through every cluster and back to
// showing everything.
func nextCluster(clusters []int, current int) int {
	if current < 0 {
		if len(clusters) == 0 {
			return model.Unassigned
		}
		return clusters[0]
	}
	for i, c := range clusters {
		if c == current && i+1 < len(clusters) {
			return clusters[i+1]
		}
	}
	return model.Unassigned
}

func (m *dashboardModel) layout() {
	// Two bordered panes side by side with a one-column gap; a title line
	// above and the status bar below.
	w := max((m.width-5)/2, 20)
	h := max(m.height-4, 5)

	for i := range m.lists {
		if !m.ready {
			m.lists[i].vp = viewport.New(w, h)
		} else {
			m.lists[i].vp.Width, m.lists[i].vp.Height = w, h
		}
	}
	m.ready = true

	if m.detail != nil {
		m.detailVP.Width, m.detailVP.Height = max(m.width-4, 20), max(m.height-4, 5)
		m.detailVP.SetContent(renderDetail(*m.detail, max(m.width-8, 20)))
	}
	m.refresh()
}

func (m *dashboardModel) refresh() {
	for i := range m.lists {
		m.lists[i].refresh(i == m.focus)
	}
}

func (m dashboardModel) View() string {
	switch {
	case !m.ready:
		return "Initializing..."
	case m.detail != nil:
		return m.viewDetail()
	}

	var titles, panes []string
	for i, l := range m.lists {
		color := focusColor(i == m.focus)
		if i > 0 {
			titles = append(titles, " ")
			panes = append(panes, " ")
		}
		titles = append(titles, lipgloss.NewStyle().Width(l.vp.Width+2).
			Render(paneTitle.Foreground(color).Render(l.heading())))
		panes = append(panes, frameStyle.BorderForeground(color).Width(l.vp.Width).Render(l.vp.View()))
	}

	status := fmt.Sprintf(" %d total | %d new matching | preferred %s    %s",
		len(m.lists[paneAll].source), len(m.lists[paneMatched].source), formatClusters(m.preferred),
		hints(keys.Switch, keys.Up, keys.Down, keys.Open, keys.Cluster, keys.Back, keys.Quit))

	return lipgloss.JoinHorizontal(lipgloss.Top, titles...) + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, panes...) + "\n" +
		barStyle.Width(m.width).Render(status)
}

func (m dashboardModel) viewDetail() string {
	return detailTitle.Render("Job Details") + "\n" +
		frameStyle.BorderForeground(colorAccent).Width(m.width-2).Render(m.detailVP.View()) + "\n" +
		barStyle.Width(m.width).Render(" "+hints(keys.Back, keys.Up, keys.Down, keys.Quit))
}

func renderDetail(j model.JobRecord, wrapWidth int) string {
	var b strings.Builder
	for _, f := range [][2]string{
		{"Title", j.Title},
		{"Company", j.Company},
		{"Location", orNA(j.Location)},
		{"Experience", orNA(j.Experience)},
		{"Skills", orNA(j.Skills)},
		{"Cluster", strconv.Itoa(j.Cluster)},
	} {
		b.WriteString(fieldLabel.Render(f[0]) + f[1] + "\n")
	}

	label := "── Summary "
	b.WriteString("\n" + ruleStyle.Render(label+strings.Repeat("─", max(wrapWidth-len(label), 3))) + "\n\n")
	if strings.TrimSpace(j.Summary) == "" {
		b.WriteString(placeholder.Render("No summary available") + "\n")
	} else {
		b.WriteString(bodyStyle.Render(wordWrap(j.Summary, wrapWidth)) + "\n")
	}
	return b.String()
}

func renderJobs(jobs model.Batch, cursor int, focused bool, empty string) string {
	if len(jobs) == 0 {
		return "  " + empty
	}

	rows := make([]string, len(jobs))
	for i, j := range jobs {
		title, meta, mark := rowTitle, rowMeta, "  "
		if focused && i == cursor {
			title, meta, mark = rowTitleCursor, rowMetaCursor, "> "
		}
		rows[i] = mark + title.Render(j.Title) + "\n" +
			mark + meta.Render(fmt.Sprintf("%s · %s · cluster %d", j.Company, orNA(j.Location), j.Cluster))
	}
	return strings.Join(rows, "\n\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func formatClusters(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// wordWrap breaks text on spaces so no line exceeds width unless a single
// word does.
func wordWrap(text string, width int) string {
	var lines []string
	line := ""
	for _, w := range strings.Fields(text) {
		switch {
		case line == "":
			line = w
		case len(line)+1+len(w) <= width:
			line += " " + w
		default:
			lines = append(lines, line)
			line = w
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// RunDashboardTUI launches the split-pane dashboard: every classified job on
// the left, new jobs in the preferred clusters on the right.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the cluster picker.
func RunDashboardTUI(allJobs, matchedJobs model.Batch, preferred model.ClusterSet) (bool, error) {
	p := tea.NewProgram(newDashboardModel(allJobs, matchedJobs, preferred), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	return result.(dashboardModel).wantQuit, nil
}
