package app

import (
	"fmt"
	"runtime/debug"

	"github.com/dshills/termtree/internal/component"
	"github.com/dshills/termtree/internal/loop"
	"github.com/dshills/termtree/internal/renderer/backend"
)

// inputAction is what the pump does with a backend event.
type inputAction int

const (
	actionIgnore inputAction = iota
	actionCommand
	actionQuit
)

// translateEvent maps a backend event to a component command.
func translateEvent(ev backend.Event) (component.Command, inputAction) {
	switch ev.Type {
	case backend.EventClosed:
		return component.Command{}, actionQuit
	case backend.EventKey:
	default:
		return component.Command{}, actionIgnore
	}

	switch ev.Key {
	case backend.KeyCtrlC, backend.KeyCtrlD:
		return component.Command{}, actionQuit
	case backend.KeyRune:
		if ev.Rune == 'q' || ev.Rune == 'Q' {
			return component.Command{}, actionQuit
		}
	case backend.KeyNone:
		return component.Command{}, actionIgnore
	}

	return component.Command{
		Kind: component.CommandKey,
		Key:  ev.Key.String(),
		Rune: ev.Rune,
	}, actionCommand
}

// startInputPump reads backend events on a goroutine and posts them to the
// loop until the backend closes or the loop stops.
func (app *Application) startInputPump() {
	app.inputWG.Add(1)
	go func() {
		defer app.inputWG.Done()
		app.pumpInput()
	}()
}

func (app *Application) pumpInput() {
	log := app.Logger().WithComponent("input")
	for {
		ev := app.backend.PollEvent()
		cmd, action := translateEvent(ev)

		switch action {
		case actionQuit:
			if ev.Type != backend.EventClosed {
				log.Debug("quit requested by %s", ev.Key)
			}
			app.Quit()
			return
		case actionCommand:
			if !app.loop.Post(app.commandTask(cmd)) {
				return
			}
		default:
			if ev.Type == backend.EventResize {
				log.Debug("resize %dx%d", ev.Width, ev.Height)
			}
		}
	}
}

// commandTask delivers cmd to the component on the loop goroutine.
// Component errors are logged; a panic stops the loop.
func (app *Application) commandTask(cmd component.Command) loop.Task {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = NewComponentError(app.comp.Name(), cmd.String(), &RecoveredPanicError{
					Value: r,
					Stack: string(debug.Stack()),
				})
			}
		}()

		if herr := app.comp.Handle(cmd); herr != nil {
			app.logComponentError(app.comp.Name(), fmt.Errorf("%s: %w", cmd, herr))
		}
		return nil
	}
}
