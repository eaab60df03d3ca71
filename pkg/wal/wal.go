package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// ErrBroken 寫入失敗後無法把檔案截回原長度，之後的 Append 一律拒絕
var ErrBroken = errors.New("wal is broken")

// WAL 以 JSON Lines 格式追加寫入的日誌檔，每筆記錄寫入後立即 fsync
// Append 失敗時檔案會回到寫入前的長度，重放時不會出現呼叫端認為失敗的記錄
type WAL struct {
	file   *os.File
	mu     sync.Mutex
	syncFn func() error // 測試時可替換
	broken error
}

// Open 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file, syncFn: file.Sync}, nil
}

// Append 寫入一筆資料並刷入硬碟，回傳 nil 才代表資料已持久化
func (w *WAL) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return w.broken
	}

	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	offset := info.Size()

	_, err = w.file.Write(b)
	if err == nil {
		err = w.syncFn()
	}
	if err == nil {
		return nil
	}

	// 回滾：截掉這次可能已寫入的部分
	if truncErr := w.file.Truncate(offset); truncErr != nil {
		w.broken = fmt.Errorf("%w: truncate after %v: %v", ErrBroken, err, truncErr)
		return w.broken
	}
	if syncErr := w.syncFn(); syncErr != nil {
		w.broken = fmt.Errorf("%w: sync after truncate: %v", ErrBroken, syncErr)
		return w.broken
	}
	return err
}

// Replay 從頭依序讀取所有記錄
// callback 接收單筆記錄的原始 JSON，避免一次將所有資料載入記憶體
// 檔尾若有寫到一半的記錄 (crash) 會被忽略
func (w *WAL) Replay(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}
