package command

import (
	"sort"
	"strings"
)

// knownVerbs is the command set the driver accepts. Names outside this set
// are rejected before anything is sent to the server.
var knownVerbs = map[string]struct{}{}

func init() {
	for _, group := range [][]string{
		// connection and server
		{"AUTH", "CLIENT", "COMMAND", "CONFIG", "DBSIZE", "DEBUG", "ECHO", "FLUSHALL", "FLUSHDB",
			"HELLO", "INFO", "LASTSAVE", "LATENCY", "MEMORY", "MODULE", "MONITOR", "PING", "QUIT",
			"RESET", "ROLE", "SAVE", "BGSAVE", "BGREWRITEAOF", "SELECT", "SHUTDOWN", "SLOWLOG",
			"SWAPDB", "TIME", "WAIT", "ACL", "FAILOVER", "REPLICAOF", "SLAVEOF", "SYNC", "PSYNC",
			"LOLWUT", "READONLY", "READWRITE", "CLUSTER"},
		// keys
		{"COPY", "DEL", "DUMP", "EXISTS", "EXPIRE", "EXPIREAT", "EXPIRETIME", "KEYS", "MIGRATE",
			"MOVE", "OBJECT", "PERSIST", "PEXPIRE", "PEXPIREAT", "PEXPIRETIME", "PTTL", "RANDOMKEY",
			"RENAME", "RENAMENX", "RESTORE", "SCAN", "SORT", "SORT_RO", "TOUCH", "TTL", "TYPE",
			"UNLINK"},
		// strings
		{"APPEND", "DECR", "DECRBY", "GET", "GETDEL", "GETEX", "GETRANGE", "GETSET", "INCR",
			"INCRBY", "INCRBYFLOAT", "LCS", "MGET", "MSET", "MSETNX", "PSETEX", "SET", "SETEX",
			"SETNX", "SETRANGE", "STRLEN", "SUBSTR"},
		// bitmaps and hyperloglog
		{"BITCOUNT", "BITFIELD", "BITFIELD_RO", "BITOP", "BITPOS", "GETBIT", "SETBIT",
			"PFADD", "PFCOUNT", "PFMERGE"},
		// hashes
		{"HDEL", "HEXISTS", "HGET", "HGETALL", "HINCRBY", "HINCRBYFLOAT", "HKEYS", "HLEN",
			"HMGET", "HMSET", "HRANDFIELD", "HSCAN", "HSET", "HSETNX", "HSTRLEN", "HVALS",
			"HEXPIRE", "HPERSIST", "HTTL"},
		// lists
		{"BLMOVE", "BLMPOP", "BLPOP", "BRPOP", "BRPOPLPUSH", "LINDEX", "LINSERT", "LLEN",
			"LMOVE", "LMPOP", "LPOP", "LPOS", "LPUSH", "LPUSHX", "LRANGE", "LREM", "LSET", "LTRIM",
			"RPOP", "RPOPLPUSH", "RPUSH", "RPUSHX"},
		// sets
		{"SADD", "SCARD", "SDIFF", "SDIFFSTORE", "SINTER", "SINTERCARD", "SINTERSTORE",
			"SISMEMBER", "SMEMBERS", "SMISMEMBER", "SMOVE", "SPOP", "SRANDMEMBER", "SREM",
			"SSCAN", "SUNION", "SUNIONSTORE"},
		// sorted sets
		{"BZMPOP", "BZPOPMAX", "BZPOPMIN", "ZADD", "ZCARD", "ZCOUNT", "ZDIFF", "ZDIFFSTORE",
			"ZINCRBY", "ZINTER", "ZINTERCARD", "ZINTERSTORE", "ZLEXCOUNT", "ZMPOP", "ZMSCORE",
			"ZPOPMAX", "ZPOPMIN", "ZRANDMEMBER", "ZRANGE", "ZRANGEBYLEX", "ZRANGEBYSCORE",
			"ZRANGESTORE", "ZRANK", "ZREM", "ZREMRANGEBYLEX", "ZREMRANGEBYRANK",
			"ZREMRANGEBYSCORE", "ZREVRANGE", "ZREVRANGEBYLEX", "ZREVRANGEBYSCORE", "ZREVRANK",
			"ZSCAN", "ZSCORE", "ZUNION", "ZUNIONSTORE"},
		// geo
		{"GEOADD", "GEODIST", "GEOHASH", "GEOPOS", "GEORADIUS", "GEORADIUSBYMEMBER",
			"GEOSEARCH", "GEOSEARCHSTORE"},
		// streams
		{"XACK", "XADD", "XAUTOCLAIM", "XCLAIM", "XDEL", "XGROUP", "XINFO", "XLEN", "XPENDING",
			"XRANGE", "XREAD", "XREADGROUP", "XREVRANGE", "XSETID", "XTRIM"},
		// pub/sub, scripting, transactions
		{"PUBLISH", "PUBSUB", "SUBSCRIBE", "PSUBSCRIBE", "UNSUBSCRIBE", "PUNSUBSCRIBE",
			"EVAL", "EVALSHA", "EVAL_RO", "EVALSHA_RO", "SCRIPT", "FCALL", "FCALL_RO", "FUNCTION",
			"MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH"},
	} {
		for _, verb := range group {
			knownVerbs[verb] = struct{}{}
		}
	}
}

// Resolve normalises name to its canonical upper-case verb. The second
// return is false when the driver does not know the command.
func Resolve(name string) (string, bool) {
	verb := strings.ToUpper(strings.TrimSpace(name))
	if verb == "" {
		return "", false
	}
	_, ok := knownVerbs[verb]
	return verb, ok
}

// Verbs returns the known command names in sorted order.
func Verbs() []string {
	out := make([]string, 0, len(knownVerbs))
	for verb := range knownVerbs {
		out = append(out, verb)
	}
	sort.Strings(out)
	return out
}

// setVerbs reply with an unordered collection of distinct members.
var setVerbs = map[string]struct{}{
	"SMEMBERS": {},
	"SINTER":   {},
	"SUNION":   {},
	"SDIFF":    {},
}

// ReturnsSet reports whether verb replies with set semantics.
func ReturnsSet(verb string) bool {
	_, ok := setVerbs[strings.ToUpper(verb)]
	return ok
}

// ReturnsScoredMembers reports whether a sorted-set range call will pair
// each member with its score.
func ReturnsScoredMembers(verb string, args []string) bool {
	switch strings.ToUpper(verb) {
	case "ZRANGE", "ZREVRANGE", "ZRANGEBYSCORE", "ZREVRANGEBYSCORE",
		"ZUNION", "ZINTER", "ZDIFF", "ZRANDMEMBER":
	default:
		return false
	}
	for _, arg := range args {
		if strings.EqualFold(arg, "WITHSCORES") {
			return true
		}
	}
	return false
}

// connectionBound verbs change or depend on per-connection server state,
// which a pooled session cannot pin to a single connection.
var connectionBound = map[string]struct{}{
	"SELECT":       {},
	"MULTI":        {},
	"EXEC":         {},
	"DISCARD":      {},
	"WATCH":        {},
	"UNWATCH":      {},
	"SUBSCRIBE":    {},
	"PSUBSCRIBE":   {},
	"UNSUBSCRIBE":  {},
	"PUNSUBSCRIBE": {},
	"MONITOR":      {},
	"QUIT":         {},
	"RESET":        {},
	"HELLO":        {},
	"AUTH":         {},
	"READONLY":     {},
	"READWRITE":    {},
}

// ConnectionBound reports whether verb only makes sense on a dedicated
// connection.
func ConnectionBound(verb string) bool {
	_, ok := connectionBound[strings.ToUpper(verb)]
	return ok
}
