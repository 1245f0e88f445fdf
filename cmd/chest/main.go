// Package main 启动应用程序
package main

import "github.com/yeisme/chest/pkg/cmd"

//	@title			Chest API
//	@version		1.0
//	@description	Chest 是内容寻址的对象存储服务，按 SHA-256 去重保存对象，支持接收方证书加密、别名以及副本与客户端之间的缺失对象协商。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
