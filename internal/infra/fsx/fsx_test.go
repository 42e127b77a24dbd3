package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func noTemps(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplace_OverwritesAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomicReplace(dir, "history.json", []byte(content)); err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
	}
	b, err := os.ReadFile(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "second" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	noTemps(t, dir, "history.json")
}

func TestWriteFileAtomicMode_PrivatePerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows 不支持 unix 权限位")
	}
	dir := t.TempDir()
	if err := WriteFileAtomicMode(dir, "apiKey.json", []byte(`"k"`), PermPrivate); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	fi, err := os.Stat(filepath.Join(dir, "apiKey.json"))
	if err != nil {
		t.Fatalf("Stat 失败：%v", err)
	}
	if fi.Mode().Perm() != PermPrivate {
		t.Fatalf("期望权限 %v，实际 %v", PermPrivate, fi.Mode().Perm())
	}
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomicReplace(dir, "a.txt", []byte("hello")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	noTemps(t, dir, "a.txt")
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：%v", err)
	}
}

func TestWriteFileAtomicNoOverwrite_KeepsExisting(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicNoOverwrite(dir, "frame.png", []byte("one")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	err := WriteFileAtomicNoOverwrite(dir, "frame.png", []byte("two"))
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际 %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "frame.png"))
	if string(b) != "one" {
		t.Fatalf("已有文件不应被覆盖：%q", string(b))
	}
	noTemps(t, dir, "frame.png")
}

func TestWriteFileAtomicNoOverwrite_LinkUnsupportedFallsBack(t *testing.T) {
	dir := t.TempDir()

	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: errors.ErrUnsupported}
	}
	defer func() { linkFunc = old }()

	if err := WriteFileAtomicNoOverwrite(dir, "a.srt", []byte("x")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "a.srt"))
	if string(b) != "x" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	noTemps(t, dir, "a.srt")
}

func TestWriteFileAtomicNoOverwrite_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()

	// 目标路径是目录：应返回 PathTypeConflictError，而不是 os.ErrExist。
	if err := os.Mkdir(filepath.Join(dir, "a.txt"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomicNoOverwrite(dir, "a.txt", []byte("hello"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}
