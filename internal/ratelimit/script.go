package ratelimit

import "github.com/redis/go-redis/v9"

// slidingWindowScript implements a sliding window log on a sorted set.
// Members are scored by arrival time in milliseconds. The script prunes
// entries older than the window, counts what remains, and only records
// the request when it is admitted, so denied traffic cannot push the
// reset time further out. The member embeds a nonce so two requests
// landing in the same millisecond stay distinct.
//
// KEYS[1] = window key
// ARGV[1] = limit
// ARGV[2] = window in milliseconds
// ARGV[3] = now in milliseconds
// ARGV[4] = request nonce
//
// Returns {allowed, remaining, reset_at_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local nonce = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset = now + window
	if #oldest > 0 then
		reset = tonumber(oldest[2]) + window
	end
	return {0, 0, reset}
end

redis.call('ZADD', key, now, now .. '-' .. nonce)
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset = now + window
if #oldest > 0 then
	reset = tonumber(oldest[2]) + window
end
return {1, limit - count - 1, reset}
`)
