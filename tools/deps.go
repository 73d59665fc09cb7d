//go:build tools
// +build tools

package tools

import (
	_ "github.com/cloudwego/eino"
	_ "github.com/cloudwego/eino-ext/components/model/openai"
	_ "github.com/spf13/cobra"
	_ "github.com/spf13/viper"
)
