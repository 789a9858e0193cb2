package service

import (
	"os"
	"testing"

	"github.com/between2058/Phidias/utils"
)

func TestMain(m *testing.M) {
	if err := utils.InitLogger("release"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
