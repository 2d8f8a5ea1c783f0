package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "E101",
			wantMsg: "Invalid port",
			wantCat: CategoryConfig,
		},
		{
			name:    "transport error",
			code:    "E201",
			wantMsg: "Bind failed",
			wantCat: CategoryTransport,
		},
		{
			name:    "tunnel error",
			code:    "E252",
			wantMsg: "Tunnel already in use",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryTransport, "port %d busy", 10000)
	if err.Message != "port 10000 busy" {
		t.Errorf("Message = %q, want %q", err.Message, "port 10000 busy")
	}
	if err.Category != CategoryTransport {
		t.Errorf("Category = %q, want %q", err.Category, CategoryTransport)
	}
}

func TestRCPError_Error(t *testing.T) {
	err := New("E101")
	if got, want := err.Error(), "E101: Invalid port"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err2 := &RCPError{Message: "test error"}
	if err2.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "test error")
	}

	wrapped := New("E201").Wrap(fmt.Errorf("address in use"))
	if got, want := wrapped.Error(), "E201: Bind failed: address in use"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRCPError_UnwrapAndIs(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("bind: %w", New("E201").Wrap(cause))

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !stderrors.Is(err, New("E201")) {
		t.Error("errors.Is(err, E201) = false, want true")
	}
	if stderrors.Is(err, New("E202")) {
		t.Error("errors.Is(err, E202) = true, want false")
	}

	var re *RCPError
	if !stderrors.As(err, &re) || re.Code != "E201" {
		t.Errorf("errors.As code = %v, want E201", re)
	}
}

func TestCode(t *testing.T) {
	if got := Code(fmt.Errorf("wrap: %w", New("E103"))); got != "E103" {
		t.Errorf("Code() = %q, want E103", got)
	}
	if got := Code(fmt.Errorf("plain")); got != "" {
		t.Errorf("Code() = %q, want empty", got)
	}
	if got := Code(nil); got != "" {
		t.Errorf("Code(nil) = %q, want empty", got)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E201") != nil {
		t.Error("FromError(nil) should return nil")
	}

	orig := New("E101")
	if got := FromError(orig, "E201"); got != orig {
		t.Error("FromError should return an RCPError unchanged")
	}

	got := FromError(fmt.Errorf("raw"), "E202")
	if got.Code != "E202" || got.Wrapped == nil {
		t.Errorf("FromError = %+v, want code E202 with wrapped cause", got)
	}
}

func TestLogArgs(t *testing.T) {
	args := New("E101").WithField("port", 70000).LogArgs()
	if len(args)%2 != 0 {
		t.Fatalf("LogArgs() has odd length %d", len(args))
	}
	joined := fmt.Sprint(args...)
	if !strings.Contains(joined, "70000") || !strings.Contains(joined, "E101") {
		t.Errorf("LogArgs() = %v, want code and field", args)
	}
}

func TestFormat(t *testing.T) {
	out := New("E101").
		WithField("port", 70000).
		WithSuggestion("use 0 to stop listening").
		Format()

	for _, want := range []string{
		"ERROR E101: Invalid port",
		"port: 70000",
		"Ports must be between 0 and 65535.",
		"Hint: use 0 to stop listening",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains ANSI escapes")
	}
}

func TestFprint(t *testing.T) {
	t.Run("coded error in chain", func(t *testing.T) {
		var b strings.Builder
		err := fmt.Errorf("serve: %w", New("E201").Wrap(fmt.Errorf("in use")))
		Fprint(&b, err, false)
		if !strings.Contains(b.String(), "ERROR E201: Bind failed") || !strings.Contains(b.String(), "Cause: in use") {
			t.Errorf("Fprint() = %q", b.String())
		}
	})

	t.Run("plain error", func(t *testing.T) {
		var b strings.Builder
		Fprint(&b, fmt.Errorf("boom"), false)
		if got := strings.TrimSpace(b.String()); got != "ERROR: boom" {
			t.Errorf("Fprint() = %q", got)
		}
	})

	t.Run("color", func(t *testing.T) {
		var b strings.Builder
		Fprint(&b, New("E101"), true)
		if !strings.Contains(b.String(), ansiRed) {
			t.Errorf("Fprint(color) has no color: %q", b.String())
		}
	})
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	if len(lines) < 3 {
		t.Fatalf("wrapText() = %q, want several lines", lines)
	}
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than width", l)
		}
	}
	if got := wrapText("averyveryverylongword x", 10); got[0] != "averyveryverylongword" {
		t.Errorf("long word line = %q", got[0])
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}

func TestRegistryTemplates(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%q) missing", code)
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %s incomplete: %+v", code, tmpl)
		}
	}
}
