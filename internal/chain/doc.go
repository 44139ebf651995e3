/*
Package chain talks to the EVM networks that host the chat contract.

Client owns one ethclient backend for the active network. It implements the
receipt waiting and network switching the transaction coordinator needs:
WaitMined polls for the receipt, WaitConfirmations polls block height and
SwitchChain dials the new network and checks the chain id it reports.
Every RPC goes through a circuit breaker and is timed.

Contract binds the chat contract ABI, Wallet signs with a local key and
Rooms combines the three into the write calls the chat service submits.
*/
package chain
