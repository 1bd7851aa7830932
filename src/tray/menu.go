package tray

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

// Actions are the tray menu callbacks. They run on the UI thread and must
// hand work off instead of blocking.
type Actions struct {
	ToggleDraw func()
	Screenshot func()
	TypeNext   func()
	LoadScript func()
	BreakTimer func()
	Quit       func()
}

// Menu builds the tray menu.
func Menu(a Actions) *fyne.Menu {
	quit := fyne.NewMenuItem("Quit", a.Quit)
	quit.IsQuit = true
	return fyne.NewMenu("PresentInk",
		fyne.NewMenuItem("Draw", a.ToggleDraw),
		fyne.NewMenuItem("Screenshot", a.Screenshot),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Type next segment", a.TypeNext),
		fyne.NewMenuItem("Reload script", a.LoadScript),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Break timer", a.BreakTimer),
		fyne.NewMenuItemSeparator(),
		quit,
	)
}

// DesktopSetter shows icons through the Fyne desktop system tray.
type DesktopSetter struct {
	App desktop.App
}

func (s DesktopSetter) SetIcon(name string, data []byte) error {
	res := fyne.NewStaticResource(name, data)
	fyne.Do(func() { s.App.SetSystemTrayIcon(res) })
	return nil
}

// Install sets the initial icon and menu.
func (t *Tray) Install(app desktop.App, a Actions) error {
	fyne.Do(func() { app.SetSystemTrayMenu(Menu(a)) })
	return t.ChangeTrayIcon("", false)
}
