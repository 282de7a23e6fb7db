/*
Package tabdump decodes fixed-stride binary tables whose rows are addressed
by 64-bit keys and whose larger values live in deduplicated secondary pools.

Data Structure Documentation

Table

All integers are little-endian. A table starts with a fixed header, followed
by the row key index, the row data section and the pool directory.

    Table layout:
    +------------------+------------------+-----------------+--------------------------+
    | reserved (8 b.)  | entries (int32)  | pools (int32)   | data section len (int32) |
    +------------------+------------------+-----------------+--------------------------+
    | key 1 (int64)    |       ...        | key n (int64)   |
    +------------------+------------------+-----------------+
    | row 1 (stride)   |       ...        | row n (stride)  |
    +------------------+------------------+-----------------+
    | pool 1           |       ...        | pool m          |
    +------------------+------------------+-----------------+

The stride is the data section length divided by the entry count and must
divide evenly. The row with ordinal i starts at

    indexEnd + i * stride

where indexEnd is the offset right after the last key.

Pool

    Pool entry:
    +--------------+----------------------+----------------------+
    | kind (int32) | slice length (int32) | slice (length bytes) |
    +--------------+----------------------+----------------------+

Array pools store an int32 count followed by the values. Map pools store an
int32 map count, and for each map an int32 pair count followed by (int32 key,
value) pairs. Pools of an unknown kind are skipped.

Row

A row is the concatenation of its fields in schema order, zero-padded to the
stride. Inline fields (int32, int64, double, bool, string) are stored in place,
strings with an int32 length prefix. Pooled fields are stored as an int32
index into their pool; a negative index on a map field denotes an empty map.
*/
package tabdump
