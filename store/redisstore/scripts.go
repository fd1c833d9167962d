package redisstore

import "github.com/redis/go-redis/v9"

// Each script is the sole author of its operation's atomicity: Redis
// runs a script to completion before serving any other command, so every
// invariant in spec.md §3 that spans more than one key is enforced here,
// not in Go. Dynamic per-object key names (session, delay, tags,
// tagged-queue) are built inside the script from KEYS[1] (the pool name)
// rather than passed individually, since an operation may touch an
// unbounded number of them.
//
// redis.Script.Run tries EVALSHA first and transparently falls back to
// EVAL on a NOSCRIPT reply, so callers never need to special-case a
// cold script cache.
var (
	scriptQueueTagged = redis.NewScript(queueTaggedLua)
	scriptClaim       = redis.NewScript(claimLua)
	scriptExtend      = redis.NewScript(extendLua)
	scriptRelease     = redis.NewScript(releaseLua)
	scriptRequeue     = redis.NewScript(requeueLua)
	scriptCleanExpired = redis.NewScript(cleanExpiredLua)
	scriptCleanDelayed = redis.NewScript(cleanDelayedLua)
)

// queueTaggedLua implements spec.md §4.1.1.
//
// ARGV: delaySeconds, numTags, (tag, value)*numTags, numObjects, object*numObjects.
// Returns the objects newly added to the pool, in discovery order.
const queueTaggedLua = `
local pool = KEYS[1]
local delay = tonumber(ARGV[1])
local numTags = tonumber(ARGV[2])
local idx = 3
local tagPairs = {}
for i = 1, numTags do
  local t = ARGV[idx]; idx = idx + 1
  local v = ARGV[idx]; idx = idx + 1
  tagPairs[#tagPairs + 1] = {t, v}
end
local numObjects = tonumber(ARGV[idx]); idx = idx + 1
local objects = {}
for i = 1, numObjects do
  objects[#objects + 1] = ARGV[idx]; idx = idx + 1
end

local keyAll = pool .. ":all"
local keyQueue = pool .. ":queue"
local keyQueued = pool .. ":queued"
local keyDelayedQueue = pool .. ":delayed-queue"
local channel = pool .. ":queued"

local seen = {}
local newObjects = {}
for _, o in ipairs(objects) do
  if redis.call("SISMEMBER", keyAll, o) == 0 and not seen[o] then
    seen[o] = true
    newObjects[#newObjects + 1] = o
  end
end

if #newObjects == 0 then
  return newObjects
end

for _, o in ipairs(newObjects) do
  redis.call("SADD", keyAll, o)
end

if #tagPairs > 0 then
  for _, o in ipairs(newObjects) do
    local tagsKey = pool .. ":tags:" .. o
    for _, pair in ipairs(tagPairs) do
      redis.call("HSET", tagsKey, pair[1], pair[2])
    end
  end
end

if delay > 0 then
  for _, o in ipairs(newObjects) do
    redis.call("RPUSH", keyDelayedQueue, o)
    redis.call("SET", pool .. ":delay:" .. o, "", "EX", delay)
  end
else
  for _, o in ipairs(newObjects) do
    redis.call("SADD", keyQueued, o)
    redis.call("RPUSH", keyQueue, o)
    local tg = redis.call("HGETALL", pool .. ":tags:" .. o)
    for i = 1, #tg, 2 do
      redis.call("RPUSH", pool .. ":tagged-queue:" .. tg[i] .. ":" .. tg[i + 1], o)
    end
  end
  redis.call("PUBLISH", channel, "1")
end

return newObjects
`

// claimLua implements spec.md §4.1.2. The session is supplied by the
// caller (ARGV[4]); the script never generates one.
//
// ARGV: maxCount, expirationSeconds, tag ("" if untagged), session.
// Returns the claimed objects, in claim order.
const claimLua = `
local pool = KEYS[1]
local maxCount = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])
local tag = ARGV[3]
local session = ARGV[4]

local keyQueue = pool .. ":queue"
local keyQueued = pool .. ":queued"
local keyClaimed = pool .. ":claimed"

if maxCount == 0 then
  return {}
end

local popped = {}

if tag == "" or maxCount == 1 then
  for i = 1, maxCount do
    local o = redis.call("LPOP", keyQueue)
    if not o then break end
    popped[#popped + 1] = o
  end
else
  local h = redis.call("LPOP", keyQueue)
  if not h then
    return {}
  end
  popped[#popped + 1] = h
  local v = redis.call("HGET", pool .. ":tags:" .. h, tag)
  if v then
    local taggedKey = pool .. ":tagged-queue:" .. tag .. ":" .. v
    redis.call("LREM", taggedKey, 1, h)
    for i = 1, maxCount - 1 do
      local o = redis.call("LPOP", taggedKey)
      if not o then break end
      popped[#popped + 1] = o
      redis.call("LREM", keyQueue, 1, o)
    end
    if redis.call("LLEN", taggedKey) == 0 then
      redis.call("DEL", taggedKey)
    end
  end
end

for _, o in ipairs(popped) do
  redis.call("SREM", keyQueued, o)
  redis.call("SET", pool .. ":session:" .. o, session, "EX", expiration)
  local tg = redis.call("HGETALL", pool .. ":tags:" .. o)
  for i = 1, #tg, 2 do
    local tq = pool .. ":tagged-queue:" .. tg[i] .. ":" .. tg[i + 1]
    redis.call("LREM", tq, 1, o)
    if redis.call("LLEN", tq) == 0 then
      redis.call("DEL", tq)
    end
  end
  redis.call("RPUSH", keyClaimed, o)
end

return popped
`

// extendLua implements spec.md §4.1.3.
//
// ARGV: session, expirationSeconds, object*.
// Returns 0/1.
const extendLua = `
local pool = KEYS[1]
local session = ARGV[1]
local expiration = tonumber(ARGV[2])
local objects = {}
for i = 3, #ARGV do objects[#objects + 1] = ARGV[i] end

local keyClaimed = pool .. ":claimed"

for _, o in ipairs(objects) do
  local cur = redis.call("GET", pool .. ":session:" .. o)
  if cur == false or cur ~= session then
    return 0
  end
end

for _, o in ipairs(objects) do
  redis.call("SET", pool .. ":session:" .. o, session, "EX", expiration)
  redis.call("LREM", keyClaimed, 1, o)
  redis.call("RPUSH", keyClaimed, o)
end

return 1
`

// releaseLua implements spec.md §4.1.4.
//
// ARGV: session, object*.
// Returns 0/1.
const releaseLua = `
local pool = KEYS[1]
local session = ARGV[1]
local objects = {}
for i = 2, #ARGV do objects[#objects + 1] = ARGV[i] end

local keyClaimed = pool .. ":claimed"
local keyAll = pool .. ":all"

for _, o in ipairs(objects) do
  local cur = redis.call("GET", pool .. ":session:" .. o)
  if cur == false or cur ~= session then
    return 0
  end
end

for _, o in ipairs(objects) do
  redis.call("DEL", pool .. ":session:" .. o)
  redis.call("DEL", pool .. ":tags:" .. o)
  redis.call("SREM", keyAll, o)
  redis.call("LREM", keyClaimed, 1, o)
end

return 1
`

// requeueLua implements spec.md §4.1.5.
//
// ARGV: session, delaySeconds, object*.
// Returns 0/1.
const requeueLua = `
local pool = KEYS[1]
local session = ARGV[1]
local delay = tonumber(ARGV[2])
local objects = {}
for i = 3, #ARGV do objects[#objects + 1] = ARGV[i] end

local keyClaimed = pool .. ":claimed"
local keyQueue = pool .. ":queue"
local keyQueued = pool .. ":queued"
local keyDelayedQueue = pool .. ":delayed-queue"
local channel = pool .. ":queued"

for _, o in ipairs(objects) do
  local cur = redis.call("GET", pool .. ":session:" .. o)
  if cur == false or cur ~= session then
    return 0
  end
end

for _, o in ipairs(objects) do
  redis.call("DEL", pool .. ":session:" .. o)
  redis.call("LREM", keyClaimed, 1, o)
end

if delay > 0 then
  for _, o in ipairs(objects) do
    redis.call("RPUSH", keyDelayedQueue, o)
    redis.call("SET", pool .. ":delay:" .. o, "", "EX", delay)
  end
else
  for _, o in ipairs(objects) do
    redis.call("SADD", keyQueued, o)
    redis.call("RPUSH", keyQueue, o)
    local tg = redis.call("HGETALL", pool .. ":tags:" .. o)
    for i = 1, #tg, 2 do
      redis.call("RPUSH", pool .. ":tagged-queue:" .. tg[i] .. ":" .. tg[i + 1], o)
    end
  end
  redis.call("PUBLISH", channel, "1")
end

return 1
`

// cleanExpiredLua implements spec.md §4.1.6, relying on invariant 5
// (§3): P:claimed is ordered by lease expiry, so the walk can stop at
// the first still-live entry.
//
// ARGV: none.
// Returns the objects moved back to the queue.
const cleanExpiredLua = `
local pool = KEYS[1]
local keyClaimed = pool .. ":claimed"
local keyQueue = pool .. ":queue"
local keyQueued = pool .. ":queued"
local channel = pool .. ":queued"

local moved = {}
while true do
  local o = redis.call("LINDEX", keyClaimed, 0)
  if not o then break end
  if redis.call("EXISTS", pool .. ":session:" .. o) == 1 then break end
  redis.call("LPOP", keyClaimed)
  moved[#moved + 1] = o
end

for _, o in ipairs(moved) do
  redis.call("SADD", keyQueued, o)
  redis.call("RPUSH", keyQueue, o)
  local tg = redis.call("HGETALL", pool .. ":tags:" .. o)
  for i = 1, #tg, 2 do
    redis.call("RPUSH", pool .. ":tagged-queue:" .. tg[i] .. ":" .. tg[i + 1], o)
  end
end

if #moved > 0 then
  redis.call("PUBLISH", channel, "1")
end

return moved
`

// cleanDelayedLua implements spec.md §4.1.7, the symmetric walk over
// P:delayed-queue using P:delay:<o> as the liveness probe.
//
// ARGV: none.
// Returns the objects promoted to the queue.
const cleanDelayedLua = `
local pool = KEYS[1]
local keyDelayedQueue = pool .. ":delayed-queue"
local keyQueue = pool .. ":queue"
local keyQueued = pool .. ":queued"
local channel = pool .. ":queued"

local moved = {}
while true do
  local o = redis.call("LINDEX", keyDelayedQueue, 0)
  if not o then break end
  if redis.call("EXISTS", pool .. ":delay:" .. o) == 1 then break end
  redis.call("LPOP", keyDelayedQueue)
  moved[#moved + 1] = o
end

for _, o in ipairs(moved) do
  redis.call("SADD", keyQueued, o)
  redis.call("RPUSH", keyQueue, o)
  local tg = redis.call("HGETALL", pool .. ":tags:" .. o)
  for i = 1, #tg, 2 do
    redis.call("RPUSH", pool .. ":tagged-queue:" .. tg[i] .. ":" .. tg[i + 1], o)
  end
end

if #moved > 0 then
  redis.call("PUBLISH", channel, "1")
end

return moved
`
