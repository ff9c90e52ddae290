package main

import (
	"github.com/hunkim/botmadang-digest/cmd/handlers"
	"github.com/hunkim/botmadang-digest/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
