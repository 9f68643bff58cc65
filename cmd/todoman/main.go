// Command todoman はタスク管理APIのエントリーポイント。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（既定）
//	worker       期限切れセッションの定期無効化ジョブを起動する
//	migrate      データベースマイグレーションを適用する
//	healthcheck  稼働中のAPIサーバーの/healthを確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/todoman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "todoman: %v\n", err)
		os.Exit(1)
	}
}
