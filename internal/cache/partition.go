package cache

import (
	"net/url"
	"strings"
)

// Partition is a named, independently invalidable slice of cached server
// state. A partition covers its own key and every key below it ("links:list"
// covers "links:list:folder=abc").
type Partition string

const (
	PartitionUser              Partition = "user"
	PartitionLinksList         Partition = "links:list"
	PartitionLinksDetail       Partition = "links:detail"
	PartitionConversationsList Partition = "conversations:list"

	conversationDetailPrefix = "conversations:detail"
)

// ConversationDetail is the partition holding one conversation transcript.
func ConversationDetail(id string) Partition {
	return Partition(conversationDetailPrefix + ":" + id)
}

func (p Partition) String() string {
	return string(p)
}

// Contains reports whether key belongs to the partition.
func (p Partition) Contains(key string) bool {
	return key == string(p) || strings.HasPrefix(key, string(p)+":")
}

// UserKey holds the current user, including the folder tree.
func UserKey() string {
	return string(PartitionUser)
}

// LinksListKey is the key of one filtered link listing. Filters are encoded
// with sorted keys so equal filters share an entry.
func LinksListKey(filter url.Values) string {
	return string(PartitionLinksList) + ":" + filter.Encode()
}

func LinkDetailKey(id string) string {
	return string(PartitionLinksDetail) + ":" + id
}

func ConversationsListKey() string {
	return string(PartitionConversationsList)
}

func ConversationDetailKey(id string) string {
	return string(ConversationDetail(id))
}
