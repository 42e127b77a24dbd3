// Package fsx 提供本工具落盘所需的原子写入：存储文件、导出的帧图片与字幕、配置模板。
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 可替换的函数指针，让测试能稳定模拟 EXDEV、权限等错误。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

const (
	// PermPublic 用于导出文件与配置模板。
	PermPublic os.FileMode = 0o644
	// PermPrivate 用于存储文件（其中可能含 API key）。
	PermPrivate os.FileMode = 0o600
)

// PathTypeConflictError 表示目标路径已被非普通文件占用（例如同名目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示 rename 跨越了文件系统（EXDEV）。
// 临时文件总是与目标同目录，出现它通常意味着目标是挂载点或符号链接。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨文件系统重命名失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name，已存在则覆盖。权限为 PermPublic。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return WriteFileAtomicMode(dir, name, data, PermPublic)
}

// WriteFileAtomicMode 与 WriteFileAtomicReplace 相同，但指定文件权限。
func WriteFileAtomicMode(dir, name string, data []byte, perm os.FileMode) error {
	return writeFileAtomic(dir, name, data, perm, true)
}

// WriteFileAtomicNoOverwrite 在 dir 下原子写入 name；目标已存在时返回 os.ErrExist。
//
// 发布使用 hard link 而不是 rename：link 在目标存在时失败，检查与发布之间没有竞争窗口。
// 文件系统不支持 hard link 时退回 "Lstat + rename"。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	if err := checkTarget(dst); err != nil {
		return err
	}
	return writeFileAtomic(dir, name, data, PermPublic, false)
}

func checkTarget(dst string) error {
	fi, err := os.Lstat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
		return os.ErrExist
	}
	if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode, replace bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, name)

	// 同目录临时文件，保证 rename/link 不跨文件系统。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if replace {
		err = Rename(tmpName, dst)
	} else {
		err = publishNoOverwrite(tmpName, dst)
	}
	if err != nil {
		return err
	}
	_ = syncDirBestEffort(dir)
	return nil
}

func publishNoOverwrite(tmpName, dst string) error {
	err := linkFunc(tmpName, dst)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return os.ErrExist
	}
	// 不支持 hard link（例如部分网络盘/FAT）：退回检查后 rename。
	if cerr := checkTarget(dst); cerr != nil {
		return cerr
	}
	return Rename(tmpName, dst)
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
