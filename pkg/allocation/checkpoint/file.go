package checkpoint

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

// FileStore 以 JSON 文件保存断点，每个学科与策略只保留最新一份
type FileStore struct {
	dir string
}

// NewFileStore 创建文件断点存储，目录不存在时自动创建
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "创建断点目录失败")
	}
	return &FileStore{dir: dir}, nil
}

// Dir 断点目录
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(disciplineID model.DisciplineID, strategy string) string {
	return filepath.Join(s.dir, key(disciplineID, strategy)+".json")
}

// Save 先写临时文件再原子替换
func (s *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "序列化断点失败")
	}

	target := s.path(cp.DisciplineID, cp.Strategy)
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "创建断点临时文件失败")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CodeInternal, "写入断点失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CodeInternal, "写入断点失败")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.CodeInternal, "替换断点文件失败")
	}
	return nil
}

// Latest 读取最新断点
func (s *FileStore) Latest(ctx context.Context, disciplineID model.DisciplineID, strategy string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(disciplineID, strategy))
	if os.IsNotExist(err) {
		return nil, notFound(disciplineID, strategy)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "读取断点失败")
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrap(err, errors.CodeDataIntegrity, "断点文件损坏")
	}
	return &cp, nil
}
