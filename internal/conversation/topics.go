// ABOUTME: Topic naming for realtime fan-out
// ABOUTME: One topic per conversation plus a global topic fed by broadcast sends

package conversation

import (
	"strconv"
	"strings"
)

// TopicPublic receives every message sent through the broadcast flow.
const TopicPublic = "/topic/public"

const conversationTopicPrefix = "/topic/conversations/"

// TopicForConversation returns the topic carrying a conversation's messages.
func TopicForConversation(id int64) string {
	return conversationTopicPrefix + strconv.FormatInt(id, 10)
}

// ParseTopic reports whether topic is a known topic. For conversation topics
// it also returns the conversation id; TopicPublic returns 0.
func ParseTopic(topic string) (conversationID int64, ok bool) {
	if topic == TopicPublic {
		return 0, true
	}
	rest, found := strings.CutPrefix(topic, conversationTopicPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
