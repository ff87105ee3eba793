package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/skillradar/internal/cluster"
	"github.com/amishk599/skillradar/internal/model"
)

// ClusterOption describes one cluster for display.
type ClusterOption struct {
	ID    int
	Terms []string // highest-weighted centroid terms
	Jobs  int      // records of the current batch assigned to it
}

// ClusterOptions lists every cluster of m with its top terms and how many
// records of classified fall in it.
func ClusterOptions(m *cluster.Model, classified model.Batch, topTerms int) []ClusterOption {
	counts := make(map[int]int)
	for _, j := range classified {
		counts[j.Cluster]++
	}
	opts := make([]ClusterOption, m.NumClusters())
	for c := range opts {
		opts[c] = ClusterOption{ID: c, Terms: m.TopTerms(c, topTerms), Jobs: counts[c]}
	}
	return opts
}

type pickerModel struct {
	options  []ClusterOption
	selected model.ClusterSet
	cursor   int
	done     bool
	quit     bool
}

func newPickerModel(options []ClusterOption, initial model.ClusterSet) pickerModel {
	selected := model.NewClusterSet()
	for c := range initial {
		if c >= 0 && c < len(options) {
			selected[c] = struct{}{}
		}
	}
	return pickerModel{options: options, selected: selected}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Quit):
		m.quit = true
		return m, tea.Quit
	case key.Matches(km, keys.Up):
		m.cursor = clamp(m.cursor-1, 0, max(len(m.options)-1, 0))
	case key.Matches(km, keys.Down):
		m.cursor = clamp(m.cursor+1, 0, max(len(m.options)-1, 0))
	case key.Matches(km, keys.Toggle):
		if len(m.options) > 0 {
			m.toggle(m.options[m.cursor].ID)
		}
	case key.Matches(km, keys.All):
		if len(m.selected) == len(m.options) {
			m.selected = model.NewClusterSet()
		} else {
			for _, o := range m.options {
				m.selected[o.ID] = struct{}{}
			}
		}
	case key.Matches(km, keys.Confirm):
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *pickerModel) toggle(id int) {
	if m.selected.Has(id) {
		delete(m.selected, id)
		return
	}
	m.selected[id] = struct{}{}
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitle.Render("Select your preferred job categories"))
	b.WriteByte('\n')

	for i, o := range m.options {
		box := "[ ]"
		if m.selected.Has(o.ID) {
			box = "[x]"
		}
		label := fmt.Sprintf("%s Cluster %d (%d jobs)", box, o.ID, o.Jobs)
		if i == m.cursor {
			b.WriteString(pickerCursor.Render("> " + label))
		} else {
			b.WriteString(pickerRow.Render(label))
		}
		if len(o.Terms) > 0 {
			b.WriteString("  " + pickerTerms.Render(strings.Join(o.Terms, ", ")))
		}
		b.WriteByte('\n')
	}

	b.WriteString(pickerHint.Render(hints(keys.Up, keys.Down, keys.Toggle, keys.All, keys.Confirm, keys.Quit)))
	return b.String()
}

// RunClusterPicker shows an interactive multi-select over the clusters with
// initial pre-selected. It returns the chosen set, or quit=true if the user
// left without confirming.
func RunClusterPicker(options []ClusterOption, initial model.ClusterSet) (chosen model.ClusterSet, quit bool, err error) {
	p := tea.NewProgram(newPickerModel(options, initial))
	result, err := p.Run()
	if err != nil {
		return nil, false, err
	}

	final := result.(pickerModel)
	if !final.done {
		return nil, true, nil
	}
	return final.selected, false, nil
}
