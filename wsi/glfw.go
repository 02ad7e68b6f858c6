package wsi

import (
	"errors"
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		// Leave newWindow/dispatch/setAppName unset: PlatformInUse
		// stays None and NewWindow fails with its "no window system
		// available" error, matching a
		// host with no window system available.
		return
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	newWindow = newGLFWWindow
	dispatch = glfw.PollEvents
	setAppName = func(string) {}
	platform = glfwPlatform()
}

// window wraps a *glfw.Window and satisfies the Window interface.
type window struct {
	mu    sync.Mutex
	win   *glfw.Window
	title string
	w, h  int
	mapd  bool
}

func newGLFWWindow(width, height int, title string) (Window, error) {
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}
	w := &window{win: win, title: title, w: width, h: height}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, fbw, fbh int) {
		w.mu.Lock()
		w.w, w.h = fbw, fbh
		w.mu.Unlock()
		if windowHandler != nil {
			windowHandler.WindowResize(w, fbw, fbh)
		}
	})
	win.SetCloseCallback(func(_ *glfw.Window) {
		if windowHandler != nil {
			windowHandler.WindowClose(w)
		}
	})
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if keyboardHandler == nil || action == glfw.Repeat {
			return
		}
		keyboardHandler.KeyboardKey(translateKey(key), action == glfw.Press, translateMods(mods))
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if pointerHandler == nil {
			return
		}
		x, y := win.GetCursorPos()
		pointerHandler.PointerButton(translateButton(button), action == glfw.Press, int(x), int(y))
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if pointerHandler != nil {
			pointerHandler.PointerMotion(int(x), int(y))
		}
	})
	win.SetCursorEnterCallback(func(_ *glfw.Window, entered bool) {
		if pointerHandler == nil {
			return
		}
		x, y := win.GetCursorPos()
		if entered {
			pointerHandler.PointerIn(w, int(x), int(y))
		} else {
			pointerHandler.PointerOut(w)
		}
	})
	return w, nil
}

func (w *window) Map() error {
	w.win.Show()
	w.mapd = true
	return nil
}

func (w *window) Unmap() error {
	w.win.Hide()
	w.mapd = false
	return nil
}

func (w *window) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("wsi: invalid window size")
	}
	w.win.SetSize(width, height)
	w.mu.Lock()
	w.w, w.h = width, height
	w.mu.Unlock()
	return nil
}

func (w *window) SetTitle(title string) error {
	w.win.SetTitle(title)
	w.title = title
	return nil
}

func (w *window) Close() {
	w.win.Destroy()
	closeWindow(w)
}

func (w *window) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w
}

func (w *window) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.h
}

func (w *window) Title() string { return w.title }

func glfwPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return Win32
	case "linux":
		return XCB
	default:
		return None
	}
}

func translateMods(mods glfw.ModifierKey) Modifier {
	var m Modifier
	if mods&glfw.ModShift != 0 {
		m |= ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= ModCtrl
	}
	if mods&glfw.ModAlt != 0 {
		m |= ModAlt
	}
	if mods&glfw.ModCapsLock != 0 {
		m |= ModCapsLock
	}
	return m
}

func translateButton(b glfw.MouseButton) Button {
	switch b {
	case glfw.MouseButtonLeft:
		return BtnLeft
	case glfw.MouseButtonRight:
		return BtnRight
	case glfw.MouseButtonMiddle:
		return BtnMiddle
	case glfw.MouseButton4:
		return BtnBackward
	case glfw.MouseButton5:
		return BtnForward
	default:
		return BtnUnknown
	}
}

var keyTable = map[glfw.Key]Key{
	glfw.KeyGraveAccent: KeyGrave,
	glfw.Key1:           Key1,
	glfw.Key2:           Key2,
	glfw.Key3:           Key3,
	glfw.Key4:           Key4,
	glfw.Key5:           Key5,
	glfw.Key6:           Key6,
	glfw.Key7:           Key7,
	glfw.Key8:           Key8,
	glfw.Key9:           Key9,
	glfw.Key0:           Key0,
	glfw.KeyMinus:       KeyMinus,
	glfw.KeyEqual:       KeyEqual,
	glfw.KeyBackspace:   KeyBackspace,
	glfw.KeyTab:         KeyTab,
	glfw.KeyQ:           KeyQ,
	glfw.KeyW:           KeyW,
	glfw.KeyE:           KeyE,
	glfw.KeyR:           KeyR,
	glfw.KeyT:           KeyT,
	glfw.KeyY:           KeyY,
	glfw.KeyU:           KeyU,
	glfw.KeyI:           KeyI,
	glfw.KeyO:           KeyO,
	glfw.KeyP:           KeyP,
	glfw.KeyLeftBracket:  KeyLBracket,
	glfw.KeyRightBracket: KeyRBracket,
	glfw.KeyBackslash:    KeyBackslash,
	glfw.KeyCapsLock:     KeyCapsLock,
	glfw.KeyA:            KeyA,
	glfw.KeyS:            KeyS,
	glfw.KeyD:            KeyD,
	glfw.KeyF:            KeyF,
	glfw.KeyG:            KeyG,
	glfw.KeyH:            KeyH,
	glfw.KeyJ:            KeyJ,
	glfw.KeyK:            KeyK,
	glfw.KeyL:            KeyL,
	glfw.KeySemicolon:    KeySemicolon,
	glfw.KeyApostrophe:   KeyApostrophe,
	glfw.KeyEnter:        KeyReturn,
	glfw.KeyLeftShift:    KeyLShift,
	glfw.KeyZ:            KeyZ,
	glfw.KeyX:            KeyX,
	glfw.KeyC:            KeyC,
	glfw.KeyV:            KeyV,
	glfw.KeyB:            KeyB,
	glfw.KeyN:            KeyN,
	glfw.KeyM:            KeyM,
	glfw.KeyComma:        KeyComma,
	glfw.KeyPeriod:       KeyDot,
	glfw.KeySlash:        KeySlash,
	glfw.KeyRightShift:   KeyRShift,
	glfw.KeyLeftControl:  KeyLCtrl,
	glfw.KeyLeftAlt:      KeyLAlt,
	glfw.KeyLeftSuper:    KeyLMeta,
	glfw.KeySpace:        KeySpace,
	glfw.KeyRightSuper:   KeyRMeta,
	glfw.KeyRightAlt:     KeyRAlt,
	glfw.KeyRightControl: KeyRCtrl,
	glfw.KeyEscape:       KeyEsc,
	glfw.KeyF1:           KeyF1,
	glfw.KeyF2:           KeyF2,
	glfw.KeyF3:           KeyF3,
	glfw.KeyF4:           KeyF4,
	glfw.KeyF5:           KeyF5,
	glfw.KeyF6:           KeyF6,
	glfw.KeyF7:           KeyF7,
	glfw.KeyF8:           KeyF8,
	glfw.KeyF9:           KeyF9,
	glfw.KeyF10:          KeyF10,
	glfw.KeyF11:          KeyF11,
	glfw.KeyF12:          KeyF12,
	glfw.KeyInsert:       KeyInsert,
	glfw.KeyDelete:       KeyDelete,
	glfw.KeyHome:         KeyHome,
	glfw.KeyEnd:          KeyEnd,
	glfw.KeyPageUp:       KeyPageUp,
	glfw.KeyPageDown:     KeyPageDown,
	glfw.KeyUp:           KeyUp,
	glfw.KeyDown:         KeyDown,
	glfw.KeyLeft:         KeyLeft,
	glfw.KeyRight:        KeyRight,
	glfw.KeyPrintScreen:  KeySysrq,
	glfw.KeyScrollLock:   KeyScrollLock,
	glfw.KeyPause:        KeyPause,
	glfw.KeyNumLock:      KeyPadNumLock,
	glfw.KeyKPDivide:     KeyPadSlash,
	glfw.KeyKPMultiply:   KeyPadStar,
	glfw.KeyKPSubtract:   KeyPadMinus,
	glfw.KeyKPAdd:        KeyPadPlus,
	glfw.KeyKP1:          KeyPad1,
	glfw.KeyKP2:          KeyPad2,
	glfw.KeyKP3:          KeyPad3,
	glfw.KeyKP4:          KeyPad4,
	glfw.KeyKP5:          KeyPad5,
	glfw.KeyKP6:          KeyPad6,
	glfw.KeyKP7:          KeyPad7,
	glfw.KeyKP8:          KeyPad8,
	glfw.KeyKP9:          KeyPad9,
	glfw.KeyKP0:          KeyPad0,
	glfw.KeyKPDecimal:    KeyPadDot,
	glfw.KeyKPEnter:      KeyPadEnter,
	glfw.KeyKPEqual:      KeyPadEqual,
	glfw.KeyF13:          KeyF13,
	glfw.KeyF14:          KeyF14,
	glfw.KeyF15:          KeyF15,
	glfw.KeyF16:          KeyF16,
	glfw.KeyF17:          KeyF17,
	glfw.KeyF18:          KeyF18,
	glfw.KeyF19:          KeyF19,
	glfw.KeyF20:          KeyF20,
	glfw.KeyF21:          KeyF21,
	glfw.KeyF22:          KeyF22,
	glfw.KeyF23:          KeyF23,
	glfw.KeyF24:          KeyF24,
}

func translateKey(k glfw.Key) Key {
	if key, ok := keyTable[k]; ok {
		return key
	}
	return KeyUnknown
}
