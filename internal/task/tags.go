package task

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

const maxTagNameLength = 50

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TagService はタグカタログのサービス層。タグは全ユーザーで共有される。
type TagService struct {
	tagRepo repository.TagRepository
}

// NewTagService はTagServiceを生成する。
func NewTagService(tagRepo repository.TagRepository) *TagService {
	return &TagService{tagRepo: tagRepo}
}

// List は全タグを返す。
func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.tagRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// Create はタグを作成する。colorは#RRGGBB形式。
func (s *TagService) Create(ctx context.Context, name, color string) (*model.Tag, error) {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > maxTagNameLength {
		return nil, model.NewInvalidTagError(fmt.Sprintf("nameは1〜%d文字で指定してください", maxTagNameLength))
	}
	if !colorPattern.MatchString(color) {
		return nil, model.NewInvalidTagError("colorは#RRGGBB形式で指定してください")
	}

	tag, err := s.tagRepo.Create(ctx, name, color)
	if err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return tag, nil
}
