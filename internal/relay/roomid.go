package relay

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"duckling", "fawn", "lamb", "raccoon", "beaver", "seahorse", "dolphin", "narwhal", "penguin", "toucan",
}

var tools = []string{
	"compiler", "parser", "lexer", "kernel", "socket", "buffer", "cursor", "thread", "closure", "lambda",
	"vector", "tensor", "pointer", "register", "bitmap", "cache", "router", "packet", "shell", "daemon",
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"brave", "swift", "quiet", "lucky", "nimble", "sunny", "witty", "calm", "eager", "bold",
}

var extras = []string{
	"sunbeam", "stardust", "pepper", "muffin", "bubble", "sprout", "glimmer", "whisker", "echo", "jelly",
	"marble", "maple", "cocoa", "hazel", "breeze", "meadow", "willow", "ember", "pixel", "biscuit",
}

// MaxRoomIDLength bounds client supplied room ids.
const MaxRoomIDLength = 128

// generateRoomID creates a random, memorable room ID such as
// "sleepy-otter-compiler". exists is consulted to skip ids in use.
func generateRoomID(exists func(string) bool) string {
	lists := [][]string{adjectives, animals, tools}

	for {
		words := make([]string, 0, len(lists))
		for _, list := range lists {
			words = append(words, list[randomIndex(len(list))])
		}

		// One extra word on collision keeps ids short in the common case.
		id := strings.Join(words, "-")
		if exists(id) {
			id = fmt.Sprintf("%s-%s", id, extras[randomIndex(len(extras))])
		}

		if !exists(id) {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random index: %v", err))
	}
	return int(n.Int64())
}
