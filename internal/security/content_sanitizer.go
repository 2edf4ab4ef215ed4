// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力したタスク本文からマークアップを取り除き、
// 保存・表示されるテキストに実行可能なHTMLが含まれないようにする。
// bluemondayのStrictPolicyを使用し、すべてのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText はタグを除去したプレーンテキストを返す。
	// エンティティはデコードし、制御文字は空白に置き換える。
	// 出力を再度渡しても変化しない（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため共有して使用する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はタグを除去したプレーンテキストを返す。
// デコードしたエンティティが新たなタグを形作る場合（"&lt;b&gt;"など）に備えて、
// 出力が変化しなくなるまで繰り返す。2回目以降の変化では文字列が必ず短くなる。
func (s *textSanitizer) SanitizeText(raw string) string {
	text := s.sanitizeOnce(raw)
	for {
		next := s.sanitizeOnce(text)
		if next == text || len(next) >= len(text) {
			return next
		}
		text = next
	}
}

func (s *textSanitizer) sanitizeOnce(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは&や<をエスケープして返すため、保存用にデコードする。
	// 表示時はhtml/templateが再度エスケープする。
	text := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)
}
