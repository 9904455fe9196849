package window

import "go.uber.org/zap"

// WindowBuilderOption is a functional option for configuring a window.
type WindowBuilderOption func(w *glfwWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *glfwWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size. Non-positive values keep the default.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *glfwWindow) {
		if width > 0 {
			w.width = width
		}
		if height > 0 {
			w.height = height
		}
	}
}

// WithResizable toggles whether the user can resize the window.
func WithResizable(resizable bool) WindowBuilderOption {
	return func(w *glfwWindow) {
		w.resizable = resizable
	}
}

// WithLogger sets the logger used for window events.
func WithLogger(l *zap.Logger) WindowBuilderOption {
	return func(w *glfwWindow) {
		if l != nil {
			w.logger = l
		}
	}
}
