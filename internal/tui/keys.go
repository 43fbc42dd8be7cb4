package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the dashboard key bindings.
type keyMap struct {
	Format  key.Binding
	Next    key.Binding
	Preview key.Binding
	Share   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Format:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "format")),
		Next:    key.NewBinding(key.WithKeys("tab", "n"), key.WithHelp("tab", "next runtime")),
		Preview: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "toggle preview")),
		Share:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share link")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Format, k.Next, k.Preview, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Format, k.Share},
		{k.Next, k.Preview},
		{k.Help, k.Quit},
	}
}
