package engine

import (
	"github.com/probelab/uitester/browser"
)

// BrowserLauncher adapts the playwright launcher to the engine's
// Launcher interface.
type BrowserLauncher struct {
	Launcher *browser.Launcher
}

func (b BrowserLauncher) Launch(videoDir string) (Session, error) {
	s, err := b.Launcher.Launch(videoDir)
	if err != nil {
		return nil, err
	}
	return browserSession{s}, nil
}

type browserSession struct {
	*browser.Session
}

func (s browserSession) Page() Page {
	return s.Session.Page()
}
