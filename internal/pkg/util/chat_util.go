package util

import (
	"Courier/internal/pkg/consts"
	"fmt"
	"strconv"
	"strings"
)

// ChatSplit 消息分片存储的分片数量（所有的消息分1000个片）
const ChatSplit = 1000

// ChatKey 获取一个固定的 key 来标识一条会话
// 私聊：message-s-{minUserId}-{maxUserId}，两端计算结果一致
// 群聊：message-g-{groupId}
func ChatKey(fromID, chatID, chatType string) string {
	if chatType == consts.ChatTypeFriend {
		f, _ := strconv.ParseInt(fromID, 10, 64)
		c, _ := strconv.ParseInt(chatID, 10, 64)
		if f < c {
			return fmt.Sprintf("message-s-%s-%s", fromID, chatID)
		}
		return fmt.Sprintf("message-s-%s-%s", chatID, fromID)
	}
	return fmt.Sprintf("message-g-%s", chatID)
}

// CollectionName 根据分片算法获得聊天集合的集合名
func CollectionName(fromID, chatID, chatType string) string {
	if chatType == consts.ChatTypeFriend {
		f, _ := strconv.ParseInt(fromID, 10, 64)
		c, _ := strconv.ParseInt(chatID, 10, 64)
		diff := f - c
		if diff < 0 {
			diff = -diff
		}
		return fmt.Sprintf("message-s-%d", diff%ChatSplit)
	}
	g, _ := strconv.ParseInt(chatID, 10, 64)
	return fmt.Sprintf("message-g-%d", g%ChatSplit)
}

// CollectionNameByChatKey 从已存储的 chatKey 反推集合名
func CollectionNameByChatKey(chatKey string) string {
	arr := strings.Split(chatKey, "-")
	if len(arr) == 4 {
		return CollectionName(arr[2], arr[3], consts.ChatTypeFriend)
	}
	return CollectionName("0", arr[len(arr)-1], consts.ChatTypeGroup)
}

// OfflineCollectionName 存放"私聊"离线消息的集合名，chatId 即接收人
func OfflineCollectionName(chatID string) string {
	return fmt.Sprintf("offline-message-%s", chatID)
}

// ReadKey 存放聊天的最后一次查看消息时间
func ReadKey(userID, chatID string) string {
	return fmt.Sprintf("read-%s-%s", userID, chatID)
}
