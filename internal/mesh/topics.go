package mesh

const (
	TopicConnStatus  = "mesh.conn.status"
	TopicNodeInfo    = "mesh.node.info"
	TopicTextMessage = "mesh.text.message"
	TopicDelivery    = "mesh.delivery"
	TopicPingReply   = "mesh.ping.reply"
	TopicRawFrameIn  = "mesh.raw.frame.in"
	TopicRawFrameOut = "mesh.raw.frame.out"
)
